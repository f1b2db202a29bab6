package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	appcatalog "github.com/Zhima-Mochi/minishop-orders/internal/application/catalog"
	appdelivery "github.com/Zhima-Mochi/minishop-orders/internal/application/delivery"
	apporder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domdelivery "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
)

const (
	componentHTTPHandler = "http_server"
	headerIdempotencyKey = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
)

// Orders is the order orchestrator as seen by the HTTP layer.
type Orders interface {
	PlaceOrder(ctx context.Context, in apporder.PlaceOrderInput) (*domorder.Order, error)
	GetOrder(ctx context.Context, id string) (*domorder.Order, error)
	ListOrders(ctx context.Context, customerID string) ([]*domorder.Order, error)
	ScheduleDelivery(ctx context.Context, in apporder.ScheduleDeliveryInput) (*domdelivery.Task, error)
	GetProduct(ctx context.Context, id string) (*domcatalog.Product, error)
	ListProducts(ctx context.Context) ([]*domcatalog.Product, error)
}

// Services are the use cases served over HTTP.
type Services struct {
	Orders         Orders
	ReplenishStock application.UseCase[appcatalog.ReplenishStockInput, *domcatalog.Product]
	UpdatePrice    application.UseCase[appcatalog.UpdatePriceInput, *domcatalog.Product]
	GetDelivery    application.UseCase[string, *domdelivery.Task]
	ListDeliveries application.UseCase[struct{}, []*domdelivery.Task]
	UpdateDelivery application.UseCase[appdelivery.UpdateStatusInput, *domdelivery.Task]
}

type Options struct {
	// APIKey is required in X-API-Key on every route except /health and /metrics.
	APIKey string
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

type Handler struct {
	svc  Services
	opts Options
	log  observability.Logger
	tel  observability.Observability
}

func NewHandler(svc Services, opts Options, tel observability.Observability) *Handler {
	tel = observability.Or(tel)
	return &Handler{
		svc:  svc,
		opts: opts,
		log:  tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:  tel,
	}
}

// Router wires every route behind: observability (trace, request logger,
// metrics, access log) → API key → handler.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(ObservabilityMiddleware(h.tel))
	r.Use(RequireAPIKey(h.opts.APIKey))

	r.Get("/health", h.handleHealth)
	if h.opts.Metrics != nil {
		r.Handle("/metrics", h.opts.Metrics)
	}

	r.Route("/api/books", func(r chi.Router) {
		r.Get("/", h.handleListBooks)
		r.Get("/{id}", h.handleGetBook)
		r.Post("/{id}/replenish", h.handleReplenish)
		r.Put("/{id}/price", h.handleUpdatePrice)
	})
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.handlePlaceOrder)
		r.Get("/", h.handleListOrders)
		r.Get("/{id}", h.handleGetOrder)
	})
	r.Route("/api/delivery", func(r chi.Router) {
		r.Post("/", h.handleScheduleDelivery)
		r.Get("/", h.handleListDeliveries)
		r.Get("/{id}", h.handleGetDelivery)
		r.Patch("/{id}", h.handleUpdateDelivery)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Orders.ListProducts(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProducts(products))
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Orders.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(p))
}

func (h *Handler) handleReplenish(w http.ResponseWriter, r *http.Request) {
	var req replenishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.svc.ReplenishStock.Execute(r.Context(), appcatalog.ReplenishStockInput{
		ProductID: chi.URLParam(r, "id"),
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(p))
}

func (h *Handler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.svc.UpdatePrice.Execute(r.Context(), appcatalog.UpdatePriceInput{
		ProductID: chi.URLParam(r, "id"),
		Price:     req.Price,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(p))
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lines := make([]apporder.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, apporder.LineInput{ProductID: it.ISBN, Quantity: it.Quantity})
	}
	o, err := h.svc.Orders.PlaceOrder(r.Context(), apporder.PlaceOrderInput{
		IdempotencyKey: strings.TrimSpace(r.Header.Get(headerIdempotencyKey)),
		CustomerID:     req.CustomerID,
		Lines:          lines,
		Payment: dompay.Details{
			CardNumber: req.Payment.CardNumber,
			Expiry:     req.Payment.Expiry,
			CardHolder: req.Payment.CardHolder,
		},
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrder(o))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Orders.ListOrders(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleScheduleDelivery(w http.ResponseWriter, r *http.Request) {
	var req scheduleDeliveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	task, err := h.svc.Orders.ScheduleDelivery(r.Context(), apporder.ScheduleDeliveryInput{
		OrderID: req.OrderID,
		Address: req.Address,
		Courier: req.Courier,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDelivery(task))
}

func (h *Handler) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.GetDelivery.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDelivery(task))
}

func (h *Handler) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListDeliveries.Execute(r.Context(), struct{}{})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]deliveryResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toDelivery(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var req updateDeliveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	task, err := h.svc.UpdateDelivery.Execute(r.Context(), appdelivery.UpdateStatusInput{
		TaskID: chi.URLParam(r, "id"),
		Status: req.Status,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDelivery(task))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeDomainError maps application errors onto status codes. Unexpected
// errors are logged and answered with 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr   *apporder.StockError
		paymentErr *apporder.PaymentError
	)
	switch {
	case errors.As(err, &stockErr):
		available := stockErr.Available
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     err.Error(),
			OrderID:   stockErr.OrderID,
			ISBN:      stockErr.ProductID,
			Requested: stockErr.Requested,
			Available: &available,
		})
	case errors.Is(err, apporder.ErrPaymentTimeout):
		resp := errorResponse{Error: err.Error(), Reason: dompay.DeclineTimeout}
		if errors.As(err, &paymentErr) {
			resp.OrderID = paymentErr.OrderID
		}
		writeJSON(w, http.StatusGatewayTimeout, resp)
	case errors.As(err, &paymentErr):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:   err.Error(),
			Reason:  paymentErr.Reason,
			OrderID: paymentErr.OrderID,
		})
	case errors.Is(err, apporder.ErrInvalidRequest),
		errors.Is(err, appcatalog.ErrInvalidRequest),
		errors.Is(err, appdelivery.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, apporder.ErrOrderNotFound),
		errors.Is(err, appcatalog.ErrProductNotFound),
		errors.Is(err, appdelivery.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, apporder.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, apporder.ErrInvalidState),
		errors.Is(err, appdelivery.ErrInvalidState):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		logctx.FromOr(r.Context(), h.log).Error("http_internal_error", observability.F("error", err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
