package scraper

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FlexPrice decodes a price that platforms serialize as either a JSON number
// or a string ("29.99").
type FlexPrice float64

func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*p = 0
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*p = 0
			return nil
		}
		*p = FlexPrice(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = FlexPrice(f)
	return nil
}

// FlexTags decodes tags that platforms serialize as either a JSON array of
// strings or a single comma-separated string.
type FlexTags []string

func (t *FlexTags) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*t = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if trimmedPart := strings.TrimSpace(part); trimmedPart != "" {
			tags = append(tags, trimmedPart)
		}
	}
	*t = tags
	return nil
}

// ParseTime parses the timestamp formats the platform APIs emit. Returns nil
// for empty or unrecognized values.
func ParseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}
