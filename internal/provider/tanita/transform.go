package tanita

import (
	"time"

	"github.com/lifedata/connector/internal/models"
)

const (
	responseDateFmt = "200601021504"
	// sourceIDFmt matches the millisecond ISO-8601 form of existing rows.
	sourceIDFmt = "2006-01-02T15:04:05.000Z"
)

// ParseResponseDate reads a yyyyMMddHHmm JST timestamp.
func ParseResponseDate(s string) (time.Time, error) {
	return time.ParseInLocation(responseDateFmt, s, JST)
}

// measurement is every tag reported at one timestamp. The first item seen
// for the timestamp supplies keydata, model and tag.
type measurement struct {
	first  item
	values map[string]string
}

// group merges items by date, keeping the order dates first appear in.
func group(items []item) []measurement {
	index := make(map[string]int)
	var out []measurement
	for _, it := range items {
		i, ok := index[it.Date]
		if !ok {
			i = len(out)
			index[it.Date] = i
			out = append(out, measurement{first: it, values: map[string]string{}})
		}
		out[i].values[it.Tag] = it.KeyData
	}
	return out
}

func records(items []item, fields map[string]string) []models.RawRecord {
	var out []models.RawRecord
	for _, m := range group(items) {
		at, err := ParseResponseDate(m.first.Date)
		if err != nil {
			continue
		}
		payload := map[string]any{
			"date":             m.first.Date,
			"keydata":          m.first.KeyData,
			"model":            m.first.Model,
			"tag":              m.first.Tag,
			"_measured_at_jst": at.Format(time.RFC3339),
		}
		for tag, field := range fields {
			if v, ok := m.values[tag]; ok {
				payload[field] = v
			} else {
				payload[field] = nil
			}
		}
		out = append(out, models.RawRecord{
			SourceID: at.UTC().Format(sourceIDFmt),
			Payload:  payload,
		})
	}
	return out
}

func bodyCompositionRecords(items []item) []models.RawRecord {
	return records(items, map[string]string{
		TagWeight:         "weight",
		TagBodyFatPercent: "body_fat_percent",
	})
}

func bloodPressureRecords(items []item) []models.RawRecord {
	return records(items, map[string]string{
		TagSystolic:  "systolic",
		TagDiastolic: "diastolic",
		TagPulse:     "pulse",
	})
}
