package order

import (
	"encoding/json"
	"time"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusNew       Status = "New"
	StatusPaid      Status = "Paid"
	StatusSent      Status = "Sent"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// validTransitions defines allowed status changes; anything absent is terminal.
var validTransitions = map[Status][]Status{
	StatusNew:       {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusSent, StatusCancelled},
	StatusSent:      {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ShippingDetails is stored on the order in serialized form.
type ShippingDetails struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type OrderItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// Line is one cart line priced at finalization time.
type Line struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	Items           []OrderItem     `json:"items"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	ShippingDetails string          `json:"shipping_details"`
	CreatedAt       time.Time       `json:"created_at"`
}

// New builds an order in status New with prices frozen from lines.
func New(userID string, lines []Line, shipping ShippingDetails) (*Order, error) {
	if len(lines) == 0 {
		return nil, apperr.BadRequest("Cart is empty.")
	}
	raw, err := json.Marshal(shipping)
	if err != nil {
		return nil, apperr.InvalidArgument("Shipping details could not be serialized: %v", err)
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Status:          StatusNew,
		Items:           make([]OrderItem, 0, len(lines)),
		TotalPrice:      decimal.Zero,
		ShippingDetails: string(raw),
		CreatedAt:       time.Now().UTC(),
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.InvalidArgument("Quantity for product %s must be greater than zero.", l.ProductID)
		}
		o.Items = append(o.Items, OrderItem{
			ID:              uuid.New().String(),
			OrderID:         o.ID,
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Price,
		})
		o.TotalPrice = o.TotalPrice.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return o, nil
}

// Shipping decodes the stored shipping details.
func (o *Order) Shipping() (ShippingDetails, error) {
	var sd ShippingDetails
	if o.ShippingDetails == "" {
		return sd, nil
	}
	err := json.Unmarshal([]byte(o.ShippingDetails), &sd)
	return sd, err
}

func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

func (o *Order) Pay() (Status, error) {
	if o.Status == StatusPaid {
		return o.Status, apperr.BadRequest("Order %s is already paid.", o.ID)
	}
	if o.Status != StatusNew {
		return o.Status, apperr.BadRequest("Order %s is not in New status.", o.ID)
	}
	return o.transition(StatusPaid)
}

func (o *Order) Ship() (Status, error) { return o.transition(StatusSent) }

func (o *Order) Complete() (Status, error) { return o.transition(StatusCompleted) }

func (o *Order) Cancel() (Status, error) { return o.transition(StatusCancelled) }

// transition returns the previous status on success.
func (o *Order) transition(target Status) (Status, error) {
	from := o.Status
	if !o.CanTransitionTo(target) {
		return from, o.transitionError(target)
	}
	o.Status = target
	return from, nil
}

func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return apperr.BadRequest("Order %s is cancelled.", o.ID)
	case o.Status == StatusNew && target == StatusSent:
		return apperr.BadRequest("Order %s is not paid.", o.ID)
	default:
		return apperr.BadRequest("Order %s cannot move from %s to %s.", o.ID, o.Status, target)
	}
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return &cp
}
