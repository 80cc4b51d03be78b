package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 365
	statsTopActions  = 10
)

type Reader interface {
	List(ctx context.Context, f Filter) ([]domain.AuditLogEntry, int, error)
	Stats(ctx context.Context, since time.Time, top int) (*Stats, error)
}

type Handler struct {
	reader  Reader
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewHandler(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{
		reader:  reader,
		logger:  logger,
		nowFunc: time.Now,
	}
}

type listResponse struct {
	Entries  []domain.AuditLogEntry `json:"entries"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, total, err := h.reader.List(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list audit logs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	f.normalize()
	h.writeJSON(w, http.StatusOK, listResponse{
		Entries:  entries,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	days := defaultStatsDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxStatsDays {
			h.writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	since := h.nowFunc().UTC().AddDate(0, 0, -days)
	stats, err := h.reader.Stats(r.Context(), since, statsTopActions)
	if err != nil {
		h.logger.Error("failed to compute audit stats", "error", err, "days", days)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Actor:        q.Get("actor"),
		Action:       domain.AuditAction(q.Get("action")),
		ResourceType: domain.AuditResource(q.Get("resource_type")),
		ResourceID:   q.Get("resource_id"),
		Severity:     domain.AuditSeverity(q.Get("severity")),
	}

	if f.Action != "" && !f.Action.Valid() {
		return f, &domain.ValidationError{Field: "action", Message: "unknown audit action"}
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return f, &domain.ValidationError{Field: "severity", Message: "unknown severity"}
	}

	var err error
	if f.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q.Get("to"), "to"); err != nil {
		return f, err
	}
	if f.Page, err = parseInt(q.Get("page"), "page"); err != nil {
		return f, err
	}
	if f.PageSize, err = parseInt(q.Get("page_size"), "page_size"); err != nil {
		return f, err
	}

	return f, nil
}

func parseTime(v, field string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: field, Message: "must be an RFC 3339 timestamp"}
	}
	return t, nil
}

func parseInt(v, field string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, &domain.ValidationError{Field: field, Message: "must be a positive integer"}
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
