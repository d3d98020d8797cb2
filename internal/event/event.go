package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the dispatch key carried as "eventType" in every payload.
type Kind string

const (
	KindItemAddedToCart      Kind = "ItemAddedToCart"
	KindItemRemovedFromCart  Kind = "ItemRemovedFromCart"
	KindCartCleared          Kind = "CartCleared"
	KindOrderCreated         Kind = "OrderCreated"
	KindOrderStatusChanged   Kind = "OrderStatusChanged"
	KindProductCreated       Kind = "ProductCreated"
	KindStockQuantityAdded   Kind = "StockQuantityAdded"
	KindStockQuantityRemoved Kind = "StockQuantityRemoved"
)

// Kinds lists every event kind the system emits.
func Kinds() []Kind {
	return []Kind{
		KindItemAddedToCart,
		KindItemRemovedFromCart,
		KindCartCleared,
		KindOrderCreated,
		KindOrderStatusChanged,
		KindProductCreated,
		KindStockQuantityAdded,
		KindStockQuantityRemoved,
	}
}

// Metadata is embedded in every event payload.
type Metadata struct {
	EventID       string    `json:"eventId"`
	EventType     Kind      `json:"eventType"`
	OccurredAtUTC time.Time `json:"occurredAtUtc"`
}

// NewMetadata stamps a fresh event id and the current UTC time.
func NewMetadata(kind Kind) Metadata {
	return Metadata{
		EventID:       uuid.New().String(),
		EventType:     kind,
		OccurredAtUTC: time.Now().UTC(),
	}
}

func (m Metadata) Meta() Metadata { return m }

func (m Metadata) sealed() {}

// Event is implemented only by types embedding Metadata.
type Event interface {
	Meta() Metadata
	sealed()
}
