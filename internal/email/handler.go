// Package email is the mail relay stub the notification dispatcher posts to.
// It validates and logs each message after a simulated delivery delay.
package email

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
	"github.com/joao-fontenele/storefront-orderflow/internal/validation"
)

type Handler struct {
	validate *validatorv10.Validate
	logger   *slog.Logger
	sent     metric.Int64Counter
	minDelay time.Duration
	maxDelay time.Duration
}

func NewHandler(minDelay, maxDelay time.Duration, logger *slog.Logger) *Handler {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Handler{
		validate: validation.New(),
		logger:   logger,
		sent:     telemetry.Counter(telemetry.Meter("email"), "emails_sent_total", "Emails accepted by the relay"),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

type sendRequest struct {
	To      string                  `json:"to" validate:"required,email"`
	From    string                  `json:"from" validate:"omitempty,email"`
	Subject string                  `json:"subject" validate:"required"`
	Body    string                  `json:"body" validate:"required"`
	Kind    domain.NotificationKind `json:"kind"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if delay := h.delay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	h.sent.Add(r.Context(), 1, metric.WithAttributes(attribute.String("kind", string(req.Kind))))
	h.logger.Info("email sent", "to", req.To, "from", req.From, "subject", req.Subject, "kind", req.Kind)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) delay() time.Duration {
	spread := h.maxDelay - h.minDelay
	if spread <= 0 {
		return h.minDelay
	}
	return h.minDelay + rand.N(spread+1)
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
