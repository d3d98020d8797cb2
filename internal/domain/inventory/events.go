package inventory

import "github.com/example/ec-reservation/internal/event"

type StockQuantityAdded struct {
	event.Metadata
	StockItemID   string `json:"stockItemId"`
	ProductID     string `json:"productId"`
	QuantityAdded int    `json:"quantityAdded"`
}

type StockQuantityRemoved struct {
	event.Metadata
	StockItemID     string `json:"stockItemId"`
	ProductID       string `json:"productId"`
	QuantityRemoved int    `json:"quantityRemoved"`
}

func NewStockQuantityAdded(s *StockItem, qty int) StockQuantityAdded {
	return StockQuantityAdded{
		Metadata:      event.NewMetadata(event.KindStockQuantityAdded),
		StockItemID:   s.ID,
		ProductID:     s.ProductID,
		QuantityAdded: qty,
	}
}

func NewStockQuantityRemoved(s *StockItem, qty int) StockQuantityRemoved {
	return StockQuantityRemoved{
		Metadata:        event.NewMetadata(event.KindStockQuantityRemoved),
		StockItemID:     s.ID,
		ProductID:       s.ProductID,
		QuantityRemoved: qty,
	}
}
