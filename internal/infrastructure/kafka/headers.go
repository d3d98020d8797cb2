package kafka

import (
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType = "x-event-type"
	HeaderMessageID = "x-outbox-id"
)

// headerCarrier adapts Kafka headers to propagation.TextMapCarrier.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// Header returns the value of key, or "".
func Header(headers []kafka.Header, key string) string {
	return headerCarrier{headers: &headers}.Get(key)
}
