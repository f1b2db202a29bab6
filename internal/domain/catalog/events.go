package catalog

import "time"

// StockReplenishedEvent is emitted after units are added back to a product by an operator.
type StockReplenishedEvent struct {
	ProductID  string
	Added      int
	Stock      int
	OccurredAt time.Time
}

func (StockReplenishedEvent) EventName() string { return "catalog.stock_replenished" }

func NewStockReplenishedEvent(p *Product, added int) StockReplenishedEvent {
	return StockReplenishedEvent{
		ProductID:  p.ID,
		Added:      added,
		Stock:      p.Stock,
		OccurredAt: time.Now().UTC(),
	}
}
