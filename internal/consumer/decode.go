package consumer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/domain/product"
	"github.com/example/ec-reservation/internal/event"
)

var ErrUnknownEventType = errors.New("unknown event type")

type decoder func(payload []byte) (event.Event, error)

// decoders is the closed set of payload types; event.Kinds() must all appear here.
var decoders = map[event.Kind]decoder{
	event.KindItemAddedToCart:      decodeAs[cart.ItemAddedToCart],
	event.KindItemRemovedFromCart:  decodeAs[cart.ItemRemovedFromCart],
	event.KindCartCleared:          decodeAs[cart.CartCleared],
	event.KindOrderCreated:         decodeAs[order.OrderCreated],
	event.KindOrderStatusChanged:   decodeAs[order.OrderStatusChanged],
	event.KindProductCreated:       decodeAs[product.ProductCreated],
	event.KindStockQuantityAdded:   decodeAs[inventory.StockQuantityAdded],
	event.KindStockQuantityRemoved: decodeAs[inventory.StockQuantityRemoved],
}

func decodeAs[T event.Event](payload []byte) (event.Event, error) {
	var e T
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// Decode reads eventType from payload and returns the concrete event.
func Decode(payload []byte) (event.Event, error) {
	var meta event.Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	dec, ok := decoders[meta.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, meta.EventType)
	}
	evt, err := dec(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", meta.EventType, err)
	}
	return evt, nil
}
