package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storely/order-core/internal/core/domain"
	"github.com/storely/order-core/internal/core/service"
	"github.com/storely/order-core/internal/port"
)

// HTTPHandler exposes the transaction core to the routing layer. Money fields
// cross this boundary as decimal strings; inside they are integer minor units.
type HTTPHandler struct {
	log     *slog.Logger
	service *service.OrderService
}

func NewHTTPHandler(log *slog.Logger, svc *service.OrderService) *HTTPHandler {
	return &HTTPHandler{log: log, service: svc}
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	CustomerID      string             `json:"customer_id"`
	Items           []orderLineRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address,omitempty"`
	Notes           string             `json:"notes,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderItemView struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type orderView struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	Items           []orderItemView `json:"items"`
	Status          string          `json:"status"`
	Total           string          `json:"total"`
	Currency        string          `json:"currency"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

type stockView struct {
	ProductID      string `json:"product_id"`
	AvailableStock int    `json:"available_stock"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.healthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.placeOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/status", h.updateStatus)
		r.Get("/stock/{productID}", h.getStock)
	})
	return r
}

func (h *HTTPHandler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	lines := make([]service.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, service.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.service.Checkout(r.Context(), req.CustomerID, lines, req.ShippingAddress, req.Notes)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderView(order))
}

func (h *HTTPHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

func (h *HTTPHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "UNKNOWN_STATUS", err.Error())
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderView(order))
}

func (h *HTTPHandler) getStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	stock, err := h.service.GetStock(r.Context(), productID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockView{ProductID: productID, AvailableStock: stock})
}

// writeServiceError maps core errors onto the external taxonomy. Unknown
// errors are logged and surface as an opaque 500.
func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "EMPTY_CART", "cart is empty")
	case errors.Is(err, service.ErrMissingCustomer):
		writeError(w, http.StatusBadRequest, "MISSING_CUSTOMER", "missing customer id")
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrQuantityTooLarge),
		errors.Is(err, domain.ErrExceedsKnownStock):
		writeError(w, http.StatusBadRequest, "INVALID_QUANTITY", err.Error())
	case errors.Is(err, port.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, port.ErrProductInactive):
		writeError(w, http.StatusConflict, "PRODUCT_INACTIVE", err.Error())
	case errors.Is(err, port.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, port.ErrReserveConflict):
		writeError(w, http.StatusServiceUnavailable, "RESERVE_CONFLICT", "try again")
	case errors.Is(err, port.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "ILLEGAL_TRANSITION", err.Error())
	case errors.Is(err, port.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "CONCURRENT_MODIFICATION", "try again")
	case errors.Is(err, service.ErrPersistenceFailure):
		writeError(w, http.StatusBadGateway, "PERSISTENCE_FAILURE", "order not placed")
	default:
		h.log.Error("unhandled service error", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func toOrderView(o *domain.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.DecimalString(),
			Subtotal:    item.Subtotal.DecimalString(),
		})
	}
	return orderView{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Items:           items,
		Status:          string(o.Status),
		Total:           o.Total.DecimalString(),
		Currency:        o.Total.Currency,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
