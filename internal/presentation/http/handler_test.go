package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appcatalog "github.com/Zhima-Mochi/minishop-orders/internal/application/catalog"
	appdelivery "github.com/Zhima-Mochi/minishop-orders/internal/application/delivery"
	apporder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/payment"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const testKey = "secret123"

type server struct {
	t       *testing.T
	handler http.Handler
	reg     *prometheus.Registry
	catalog *memory.Catalog
}

func newServer(t *testing.T) *server {
	t.Helper()
	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.Instruments(prometrics.New(reg, "", ""))
	tel := infraobs.New(nil, nil, counters, histograms)

	catalog := memory.NewCatalog()
	for _, p := range []struct {
		id, name, price string
		stock           int
	}{
		{"A", "Book A", "10", 5},
		{"B", "Book B", "5", 1},
	} {
		product, err := domcatalog.NewProduct(p.id, p.name, "Author", decimal.RequireFromString(p.price), p.stock)
		if err != nil {
			t.Fatal(err)
		}
		if err := catalog.Add(context.Background(), product); err != nil {
			t.Fatal(err)
		}
	}
	gateway := payment.NewGateway(payment.GatewayConfig{SuccessRate: 1, MaxAmount: decimal.NewFromInt(10000)})
	deliveries := memory.NewDeliveryScheduler()

	orders := apporder.NewOrchestrator(apporder.Dependencies{
		Catalog:     catalog,
		Ledger:      memory.NewLedger(),
		Payments:    gateway,
		Deliveries:  deliveries,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		IDs:         id.NewUUIDGenerator(),
	}, apporder.Options{HoldTimeout: time.Second}, tel)

	h := NewHandler(Services{
		Orders:         orders,
		ReplenishStock: appcatalog.NewReplenishStockUseCase(catalog, nil, tel),
		UpdatePrice:    appcatalog.NewUpdatePriceUseCase(catalog, tel),
		GetDelivery:    appdelivery.NewGetDeliveryUseCase(deliveries, tel),
		ListDeliveries: appdelivery.NewListDeliveriesUseCase(deliveries, tel),
		UpdateDelivery: appdelivery.NewUpdateStatusUseCase(deliveries, nil, tel),
	}, Options{APIKey: testKey}, tel)

	return &server{t: t, handler: h.Router(), reg: reg, catalog: catalog}
}

func (s *server) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(headerAPIKey, testKey)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func orderBody(customer string, items ...orderItemRequest) placeOrderRequest {
	return placeOrderRequest{
		CustomerID:      customer,
		Items:           items,
		Payment:         paymentRequest{CardNumber: "4242 4242 4242 4242", Expiry: "12/99", CardHolder: "Test Buyer"},
		ShippingAddress: "1 Main St",
	}
}

func TestAPIKeyRequired(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/books/", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/books/", nil)
	req.Header.Set(headerAPIKey, "wrong")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d", rec.Code)
	}
}

func TestBooks(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/api/books/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	if books := decode[[]productResponse](t, rec); len(books) != 2 {
		t.Fatalf("list = %+v", books)
	}

	rec = s.do(http.MethodGet, "/api/books/A", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	if book := decode[productResponse](t, rec); book.ISBN != "A" || !book.Price.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("get = %+v", book)
	}

	if rec := s.do(http.MethodGet, "/api/books/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: status = %d", rec.Code)
	}

	rec = s.do(http.MethodPost, "/api/books/B/replenish", replenishRequest{Quantity: 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("replenish: status = %d body %s", rec.Code, rec.Body)
	}
	if book := decode[productResponse](t, rec); book.Stock != 5 {
		t.Fatalf("stock after replenish = %d", book.Stock)
	}
	if rec := s.do(http.MethodPost, "/api/books/B/replenish", replenishRequest{Quantity: 0}); rec.Code != http.StatusBadRequest {
		t.Fatalf("zero replenish: status = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/books/B/replenish", replenishRequest{Quantity: math.MaxInt}); rec.Code != http.StatusBadRequest {
		t.Fatalf("overflowing replenish: status = %d", rec.Code)
	}

	rec = s.do(http.MethodPut, "/api/books/A/price", `{"price":"12.50"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("price: status = %d body %s", rec.Code, rec.Body)
	}
	if book := decode[productResponse](t, rec); !book.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("price = %s", book.Price)
	}
}

func TestPlaceOrderAndReplay(t *testing.T) {
	s := newServer(t)
	body := orderBody("alice", orderItemRequest{ISBN: "A", Quantity: 2}, orderItemRequest{ISBN: "B", Quantity: 1})

	rec := s.do(http.MethodPost, "/api/orders/", body, headerIdempotencyKey, "k-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("place: status = %d body %s", rec.Code, rec.Body)
	}
	first := decode[orderResponse](t, rec)
	if first.Status != "confirmed" || !first.Total.Equal(decimal.NewFromInt(25)) || first.PaymentTxID == "" {
		t.Fatalf("order = %+v", first)
	}

	rec = s.do(http.MethodPost, "/api/orders/", body, headerIdempotencyKey, "k-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("replay: status = %d body %s", rec.Code, rec.Body)
	}
	if replay := decode[orderResponse](t, rec); replay.OrderID != first.OrderID {
		t.Fatalf("replay created %s, want %s", replay.OrderID, first.OrderID)
	}

	rec = s.do(http.MethodGet, "/api/orders/"+first.OrderID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	rec = s.do(http.MethodGet, "/api/orders/?customer_id=alice", nil)
	if list := decode[[]orderResponse](t, rec); len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if rec := s.do(http.MethodGet, "/api/orders/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing order: status = %d", rec.Code)
	}
}

func TestPlaceOrderErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   any
		status int
	}{
		{"malformed json", `{"customer_id":`, http.StatusBadRequest},
		{"unknown field", `{"customer":"x"}`, http.StatusBadRequest},
		{"no items", orderBody("alice"), http.StatusBadRequest},
		{"zero quantity", orderBody("alice", orderItemRequest{ISBN: "A", Quantity: 0}), http.StatusBadRequest},
		{"unknown book", orderBody("alice", orderItemRequest{ISBN: "Z", Quantity: 1}), http.StatusBadRequest},
		{"insufficient stock", orderBody("alice", orderItemRequest{ISBN: "B", Quantity: 2}), http.StatusConflict},
		{"declined card", placeOrderRequest{
			CustomerID: "alice",
			Items:      []orderItemRequest{{ISBN: "A", Quantity: 1}},
			Payment:    paymentRequest{CardNumber: payment.DeclineTestCard, Expiry: "12/99"},
		}, http.StatusPaymentRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newServer(t)
			rec := s.do(http.MethodPost, "/api/orders/", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body)
			}
			if got := decode[errorResponse](t, rec); got.Error == "" {
				t.Fatalf("error body = %s", rec.Body)
			}
		})
	}
}

func TestInsufficientStockBody(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodPost, "/api/orders/", orderBody("alice", orderItemRequest{ISBN: "B", Quantity: 3}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[errorResponse](t, rec)
	if got.ISBN != "B" || got.Requested != 3 || got.Available == nil || *got.Available != 1 {
		t.Fatalf("body = %+v", got)
	}
	if p, _ := s.catalog.Get(context.Background(), "B"); p.Stock != 1 {
		t.Fatalf("stock = %d after rejected order", p.Stock)
	}
}

func TestDeclineReportsReason(t *testing.T) {
	s := newServer(t)
	body := orderBody("alice", orderItemRequest{ISBN: "A", Quantity: 1})
	body.Payment.CardNumber = payment.DeclineTestCard
	rec := s.do(http.MethodPost, "/api/orders/", body)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[errorResponse](t, rec); got.Reason != "card_declined" {
		t.Fatalf("reason = %q", got.Reason)
	}
	if p, _ := s.catalog.Get(context.Background(), "A"); p.Stock != 5 {
		t.Fatalf("stock = %d after decline", p.Stock)
	}
}

func TestDeliveryLifecycle(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodPost, "/api/orders/", orderBody("alice", orderItemRequest{ISBN: "A", Quantity: 1}))
	order := decode[orderResponse](t, rec)

	rec = s.do(http.MethodPost, "/api/delivery/", scheduleDeliveryRequest{OrderID: order.OrderID, Courier: "ups"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule: status = %d body %s", rec.Code, rec.Body)
	}
	task := decode[deliveryResponse](t, rec)
	if task.Address != "1 Main St" || task.Status != "scheduled" || task.Courier != "ups" {
		t.Fatalf("task = %+v", task)
	}

	rec = s.do(http.MethodPost, "/api/delivery/", scheduleDeliveryRequest{OrderID: order.OrderID})
	if again := decode[deliveryResponse](t, rec); again.DeliveryID != task.DeliveryID {
		t.Fatalf("second schedule created %s, want %s", again.DeliveryID, task.DeliveryID)
	}

	rec = s.do(http.MethodPatch, "/api/delivery/"+task.DeliveryID, updateDeliveryRequest{Status: "in_transit"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status = %d body %s", rec.Code, rec.Body)
	}
	if rec := s.do(http.MethodPatch, "/api/delivery/"+task.DeliveryID, updateDeliveryRequest{Status: "scheduled"}); rec.Code != http.StatusConflict {
		t.Fatalf("backwards transition: status = %d", rec.Code)
	}
	if rec := s.do(http.MethodPatch, "/api/delivery/"+task.DeliveryID, updateDeliveryRequest{Status: "lost"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: status = %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/delivery/"+task.DeliveryID, nil)
	if got := decode[deliveryResponse](t, rec); got.Status != "in_transit" {
		t.Fatalf("get = %+v", got)
	}
	rec = s.do(http.MethodGet, "/api/delivery/", nil)
	if list := decode[[]deliveryResponse](t, rec); len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}

	rec = s.do(http.MethodGet, "/api/orders/"+order.OrderID, nil)
	if got := decode[orderResponse](t, rec); got.Status != "delivery_scheduled" || got.DeliveryID != task.DeliveryID {
		t.Fatalf("order after scheduling = %+v", got)
	}
}

func TestDeliveryErrors(t *testing.T) {
	s := newServer(t)
	if rec := s.do(http.MethodPost, "/api/delivery/", scheduleDeliveryRequest{OrderID: "nope", Address: "x"}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown order: status = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/delivery/", scheduleDeliveryRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing order id: status = %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/delivery/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown task: status = %d", rec.Code)
	}
}

func TestHTTPMetricsUseRouteTemplate(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodGet, "/api/books/A", nil)
	s.do(http.MethodGet, "/api/books/B", nil)

	families, err := s.reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("series = %d, want 1", len(mf.GetMetric()))
		}
		m := mf.GetMetric()[0]
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["route"] != "/api/books/{id}" || labels["status"] != "200" || labels["method"] != "GET" {
			t.Fatalf("labels = %v", labels)
		}
		if m.GetCounter().GetValue() != 2 {
			t.Fatalf("count = %v", m.GetCounter().GetValue())
		}
		return
	}
	t.Fatal("http_requests_total not gathered")
}

func TestRequestIDEchoed(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/health", nil, headerRequestID, "req-42")
	if got := rec.Header().Get(headerRequestID); got != "req-42" {
		t.Fatalf("X-Request-ID = %q", got)
	}
	rec = s.do(http.MethodGet, "/health", nil)
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatal("X-Request-ID not generated")
	}
}
