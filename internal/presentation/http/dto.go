package httppresentation

import (
	"time"

	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domdelivery "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"

	"github.com/shopspring/decimal"
)

type productResponse struct {
	ISBN   string          `json:"isbn"`
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
}

func toProduct(p *domcatalog.Product) productResponse {
	return productResponse{ISBN: p.ID, Title: p.Name, Author: p.Author, Price: p.Price, Stock: p.Stock}
}

func toProducts(ps []*domcatalog.Product) []productResponse {
	out := make([]productResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProduct(p))
	}
	return out
}

type orderItemRequest struct {
	ISBN     string `json:"isbn"`
	Quantity int    `json:"quantity"`
}

type paymentRequest struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CardHolder string `json:"card_holder"`
}

type placeOrderRequest struct {
	CustomerID      string             `json:"customer_id"`
	Items           []orderItemRequest `json:"items"`
	Payment         paymentRequest     `json:"payment"`
	ShippingAddress string             `json:"shipping_address"`
}

type orderLineResponse struct {
	ISBN      string          `json:"isbn"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	OrderID         string              `json:"order_id"`
	CustomerID      string              `json:"customer_id"`
	Status          domorder.Status     `json:"status"`
	Items           []orderLineResponse `json:"items"`
	Total           decimal.Decimal     `json:"total"`
	PaymentTxID     string              `json:"payment_tx_id,omitempty"`
	ShippingAddress string              `json:"shipping_address,omitempty"`
	DeliveryID      string              `json:"delivery_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toOrder(o *domorder.Order) orderResponse {
	items := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, orderLineResponse{
			ISBN:      l.ProductID,
			Title:     l.ProductName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return orderResponse{
		OrderID:         o.ID,
		CustomerID:      o.CustomerID,
		Status:          o.Status,
		Items:           items,
		Total:           o.Total,
		PaymentTxID:     o.PaymentRef,
		ShippingAddress: o.ShippingAddress,
		DeliveryID:      o.DeliveryTaskID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type scheduleDeliveryRequest struct {
	OrderID string `json:"order_id"`
	Address string `json:"address"`
	Courier string `json:"courier"`
}

type updateDeliveryRequest struct {
	Status string `json:"status"`
}

type deliveryResponse struct {
	DeliveryID string             `json:"delivery_id"`
	OrderID    string             `json:"order_id"`
	Address    string             `json:"address"`
	Courier    string             `json:"courier"`
	Status     domdelivery.Status `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func toDelivery(t *domdelivery.Task) deliveryResponse {
	return deliveryResponse{
		DeliveryID: t.ID,
		OrderID:    t.OrderID,
		Address:    t.Address,
		Courier:    t.Courier,
		Status:     t.Status,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

type replenishRequest struct {
	Quantity int `json:"quantity"`
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	ISBN      string `json:"isbn,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}
