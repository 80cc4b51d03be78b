// Package gateway is the public edge: it routes storefront and admin paths
// to the orders and inventory services.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

// RequestIDHeader correlates one client request across the gateway and the
// upstream service logs. The gateway mints one when the client sends none.
const RequestIDHeader = "X-Request-ID"

type Handler struct {
	ordersProxy    *ServiceProxy
	inventoryProxy *ServiceProxy
	logger         *slog.Logger
}

func NewHandler(ordersProxy, inventoryProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy:    ordersProxy,
		inventoryProxy: inventoryProxy,
		logger:         logger,
	}
}

// Register mounts the public routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(h.HandleOrders))
	mux.HandleFunc("GET /orders/{orderNumber}", telemetry.WithHTTPRoute(h.HandleOrders))
	mux.HandleFunc("/admin/orders/", telemetry.WithHTTPRoute(h.HandleOrders))
	mux.HandleFunc("GET /admin/audit-logs", telemetry.WithHTTPRoute(h.HandleOrders))
	mux.HandleFunc("GET /admin/audit-logs/stats", telemetry.WithHTTPRoute(h.HandleOrders))
	mux.HandleFunc("/products/", telemetry.WithHTTPRoute(h.HandleCatalog))
	mux.HandleFunc("/admin/products/", telemetry.WithHTTPRoute(h.HandleCatalog))
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.inventoryProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	requestID := ensureRequestID(r)
	w.Header().Set(RequestIDHeader, requestID)

	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path, "request_id", requestID)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range forwardedResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode, "request_id", requestID)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func ensureRequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= 128 {
		return id
	}
	id := uuid.NewString()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}
	r.Header.Set(RequestIDHeader, id)
	return id
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
