package product

import "github.com/example/ec-reservation/internal/event"

type ProductCreated struct {
	event.Metadata
	ProductID string `json:"productId"`
}

func NewProductCreated(p *Product) ProductCreated {
	return ProductCreated{
		Metadata:  event.NewMetadata(event.KindProductCreated),
		ProductID: p.ID,
	}
}
