package inventory

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
	service  *Service
	validate *validatorv10.Validate
	logger   *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validation.New(),
		logger:   logger,
	}
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	var req StockRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	actor := Actor{
		Name:      auth.ActorFrom(r.Context()),
		IPAddress: ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	}

	level, err := h.service.SetStock(r.Context(), r.PathValue("id"), r.PathValue("size"), req, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, level)
}

func (h *Handler) HandleWaitlist(w http.ResponseWriter, r *http.Request) {
	var req WaitlistRequest
	if err := validation.DecodeAndValidate(r, &req, h.validate); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
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
