package outbox

// Queue names double as Kafka topics.
const (
	QueueCart    = "cart-events"
	QueueOrder   = "order-events"
	QueueStock   = "stock-events"
	QueueProduct = "product-events"
)

func Queues() []string {
	return []string{QueueCart, QueueOrder, QueueStock, QueueProduct}
}
