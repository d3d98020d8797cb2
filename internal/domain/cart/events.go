package cart

import "github.com/example/ec-reservation/internal/event"

type ItemAddedToCart struct {
	event.Metadata
	UserID      string `json:"userId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

type ItemRemovedFromCart struct {
	event.Metadata
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CartCleared struct {
	event.Metadata
	UserID string `json:"userId"`
}

func NewItemAddedToCart(userID, productID, productName string, qty int) ItemAddedToCart {
	return ItemAddedToCart{
		Metadata:    event.NewMetadata(event.KindItemAddedToCart),
		UserID:      userID,
		ProductID:   productID,
		ProductName: productName,
		Quantity:    qty,
	}
}

func NewItemRemovedFromCart(userID string, item CartItem) ItemRemovedFromCart {
	return ItemRemovedFromCart{
		Metadata:  event.NewMetadata(event.KindItemRemovedFromCart),
		UserID:    userID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
	}
}

func NewCartCleared(userID string) CartCleared {
	return CartCleared{
		Metadata: event.NewMetadata(event.KindCartCleared),
		UserID:   userID,
	}
}
