package scraper

import (
	"encoding/json"
	"testing"
)

func TestFlexPriceAcceptsNumberAndString(t *testing.T) {
	var doc struct {
		A FlexPrice `json:"a"`
		B FlexPrice `json:"b"`
		C FlexPrice `json:"c"`
		D FlexPrice `json:"d"`
	}
	raw := `{"a": 19.99, "b": "19.99", "c": "", "d": "oops"}`
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if doc.A != 19.99 || doc.B != 19.99 {
		t.Errorf("expected both forms to parse to 19.99, got %v and %v", doc.A, doc.B)
	}
	if doc.C != 0 || doc.D != 0 {
		t.Errorf("expected unparseable prices to become 0, got %v and %v", doc.C, doc.D)
	}
}

func TestFlexTagsAcceptsArrayAndCommaString(t *testing.T) {
	var doc struct {
		A FlexTags `json:"a"`
		B FlexTags `json:"b"`
	}
	raw := `{"a": ["summer", "sale"], "b": "summer, sale"}`
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, tags := range [][]string{doc.A, doc.B} {
		if len(tags) != 2 || tags[0] != "summer" || tags[1] != "sale" {
			t.Errorf("unexpected tags: %v", tags)
		}
	}
}

func TestParseTime(t *testing.T) {
	if ts := ParseTime("2024-03-01T10:00:00Z"); ts == nil {
		t.Error("expected RFC3339 timestamp to parse")
	}
	if ts := ParseTime("2024-03-01T10:00:00"); ts == nil {
		t.Error("expected bare timestamp to parse")
	}
	if ts := ParseTime(""); ts != nil {
		t.Errorf("expected empty input to yield nil, got %v", ts)
	}
	if ts := ParseTime("not a date"); ts != nil {
		t.Errorf("expected junk input to yield nil, got %v", ts)
	}
}
