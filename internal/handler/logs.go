package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/keygate/keygate/internal/auditlog"
	"github.com/keygate/keygate/internal/model"
)

// LogsHandler serves the admin-facing audit log API: filtered queries,
// aggregate statistics, and CSV export.
type LogsHandler struct {
	reader *auditlog.Reader
	logger *slog.Logger
}

// NewLogsHandler creates a LogsHandler.
func NewLogsHandler(reader *auditlog.Reader, logger *slog.Logger) *LogsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogsHandler{reader: reader, logger: logger}
}

// Query returns filtered audit entries, newest first.
// GET /api/v1/logs?start=&end=&toolId=&userName=&limit=
func (h *LogsHandler) Query(w http.ResponseWriter, r *http.Request) {
	f := auditlog.Filter{
		Start:    queryTime(r, "start"),
		End:      queryTime(r, "end"),
		ToolID:   r.URL.Query().Get("toolId"),
		UserName: r.URL.Query().Get("userName"),
	}
	limit := queryInt(r, "limit", auditlog.DefaultQueryLimit)

	entries, err := h.reader.Query(r.Context(), f, limit)
	if err != nil {
		h.logger.Error("log query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Log query failed")
		return
	}
	if entries == nil {
		entries = []model.AccessLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// Stats returns aggregate statistics over a trailing window of days.
// GET /api/v1/logs/stats?days=7
func (h *LogsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)

	stats, err := h.reader.Stats(r.Context(), days)
	if err != nil {
		h.logger.Error("log stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Log stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Export streams the filtered audit log as a CSV download.
// GET /api/v1/logs/export?start=&end=
func (h *LogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	f := auditlog.Filter{
		Start: queryTime(r, "start"),
		End:   queryTime(r, "end"),
	}

	out, err := h.reader.ExportCSV(r.Context(), f)
	if err != nil {
		h.logger.Error("log export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Log export failed")
		return
	}

	filename := fmt.Sprintf("access-log-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}
