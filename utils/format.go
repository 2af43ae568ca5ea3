package utils

// Round2 rounds to two decimal places, matching the precision used for all
// reported prices and rates.
func Round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// Truncate shortens s to max characters, appending an ellipsis when trimmed.
// Counting is rune-based so multibyte titles are never split mid-character.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
