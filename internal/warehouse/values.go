package warehouse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AsString renders a driver value as text. nil becomes "".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// AsTime parses a driver value into a timestamp. nil and "" yield nil.
// Strings without a zone are read as UTC.
func AsTime(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		u := t.UTC()
		return &u, nil
	case []byte:
		return AsTime(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				u := parsed.UTC()
				return &u, nil
			}
		}
		return nil, fmt.Errorf("unrecognised timestamp %q", s)
	default:
		return nil, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// AsJSONMap decodes a JSON object column. nil, "" and "null" yield nil.
func AsJSONMap(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return t, nil
	case []byte:
		return AsJSONMap(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == "null" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("decode json column: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", v)
	}
}
