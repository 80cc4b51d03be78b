package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/joao-fontenele/storefront-orderflow/internal/auth"
	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/ratelimit"
	"github.com/joao-fontenele/storefront-orderflow/internal/validation"
)

type Handler struct {
	ledger   *Ledger
	validate *validatorv10.Validate
	logger   *slog.Logger
}

func NewHandler(ledger *Ledger, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:   ledger,
		validate: validation.New(),
		logger:   logger,
	}
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result, err := h.ledger.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleGetByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.GetByNumber(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewCustomerView(order, h.ledger.Now()))
}

func (h *Handler) HandleAdminGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewAdminView(order, h.ledger.Now()))
}

func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.ConfirmPayment(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewAdminView(order, h.ledger.Now()))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.ledger.UpdateStatus(r.Context(), r.PathValue("id"), req, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewAdminView(order, h.ledger.Now()))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteOrder(r.Context(), r.PathValue("id"), actorFrom(r)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func actorFrom(r *http.Request) Actor {
	return Actor{
		Name:      auth.ActorFrom(r.Context()),
		IPAddress: ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *domain.ValidationError
		rule *domain.RuleViolation
	)

	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &rule):
		h.writeJSON(w, http.StatusConflict, map[string]string{
			"error":  rule.Message,
			"reason": string(rule.Reason),
		})
	case errors.Is(err, domain.ErrConcurrentUpdate):
		h.writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "order was modified by someone else, reload and retry",
			"reason": "version_conflict",
		})
	case errors.Is(err, domain.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
	default:
		h.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
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
