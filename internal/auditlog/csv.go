package auditlog

import (
	"context"
	"encoding/csv"
	"strings"
)

// csvHeader is the fixed export column order.
var csvHeader = []string{
	"Timestamp", "User Name", "Tool ID", "Action",
	"IP Address", "Country", "City", "User Agent",
}

// exportLimit bounds one export run.
const exportLimit = 100000

// ExportCSV renders entries in the given time range as CSV, newest first.
// Fields containing commas or quotes (user agents, typically) come out
// quote-wrapped with internal quotes doubled, per RFC 4180.
func (r *Reader) ExportCSV(ctx context.Context, f Filter) (string, error) {
	entries, err := r.Query(ctx, f, exportLimit)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, e := range entries {
		var country, city string
		if e.Location != nil {
			country = e.Location.Country
			city = e.Location.City
		}
		rec := []string{
			e.Timestamp, e.UserName, e.ToolID, e.Action,
			e.IP, country, city, e.UserAgent,
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}
