package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

func extractMap(value interface{}) (map[string]interface{}, bool) {
	m, ok := value.(map[string]interface{})
	return m, ok
}

func getString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return ""
	}
}

// firstString returns the first key holding a non-empty string.
func firstString(data map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if s := getString(data[key]); s != "" {
			return s, true
		}
	}
	return "", false
}

// firstFloat returns the first key holding a finite number or numeric string.
func firstFloat(data map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		if f, ok := getFloat(data[key]); ok {
			return f, true
		}
	}
	return 0, false
}

func getFloat(v interface{}) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// getNumber accepts only JSON numbers, never numeric-looking strings. Used
// where a string element means "feature name".
func getNumber(v interface{}) (float64, bool) {
	if _, isString := v.(string); isString {
		return 0, false
	}
	return getFloat(v)
}

func getTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	default:
		n, ok := getNumber(v)
		if !ok || n <= 0 {
			return time.Time{}, false
		}
		// Epoch values above 1e12 are milliseconds.
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		sec, frac := math.Modf(n)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
}

func clampProbability(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
