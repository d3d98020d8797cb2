package order

import "github.com/example/ec-reservation/internal/event"

type OrderCreated struct {
	event.Metadata
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
}

type OrderStatusChanged struct {
	event.Metadata
	OrderID    string `json:"orderId"`
	UserID     string `json:"userId"`
	FromStatus Status `json:"fromStatus"`
	ToStatus   Status `json:"toStatus"`
}

func NewOrderCreated(o *Order) OrderCreated {
	return OrderCreated{
		Metadata: event.NewMetadata(event.KindOrderCreated),
		OrderID:  o.ID,
		UserID:   o.UserID,
	}
}

func NewOrderStatusChanged(o *Order, from Status) OrderStatusChanged {
	return OrderStatusChanged{
		Metadata:   event.NewMetadata(event.KindOrderStatusChanged),
		OrderID:    o.ID,
		UserID:     o.UserID,
		FromStatus: from,
		ToStatus:   o.Status,
	}
}
