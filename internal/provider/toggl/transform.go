package toggl

import (
	"encoding/json"
	"strconv"

	"github.com/lifedata/connector/internal/models"
)

// reportGroup is one row of the detailed report: shared fields plus the
// time entries they apply to.
type reportGroup map[string]any

// groupFields are copied from a report group onto each of its entries.
var groupFields = []string{"user_id", "username", "project_id", "task_id", "billable", "description", "tag_ids"}

// flatten expands report groups into one row per time entry with the group
// fields merged in.
func flatten(groups []reportGroup) []map[string]any {
	var rows []map[string]any
	for _, g := range groups {
		entries, _ := g["time_entries"].([]any)
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			row := make(map[string]any, len(entry)+len(groupFields))
			for k, v := range entry {
				row[k] = v
			}
			for _, f := range groupFields {
				if v, ok := g[f]; ok {
					row[f] = v
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// toRecords keys each item by its id and keeps the item as the payload.
// Items without an id are dropped.
func toRecords(items []map[string]any) []models.RawRecord {
	out := make([]models.RawRecord, 0, len(items))
	for _, it := range items {
		id, ok := sourceID(it["id"])
		if !ok {
			continue
		}
		out = append(out, models.RawRecord{SourceID: id, Payload: it})
	}
	return out
}

func sourceID(v any) (string, bool) {
	switch t := v.(type) {
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case string:
		return t, t != ""
	default:
		return "", false
	}
}
