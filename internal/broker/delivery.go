package broker

import (
	"context"
	"sync"
)

// Delivery is one inbound task message. Acknowledging it commits the message offset, after
// which the broker will not redeliver it to the consumer group.
type Delivery struct {
	Key   []byte
	Value []byte

	ack  func(ctx context.Context) error
	once sync.Once
	err  error
}

func NewDelivery(key, value []byte, ack func(ctx context.Context) error) *Delivery {
	return &Delivery{Key: key, Value: value, ack: ack}
}

// Ack acknowledges the delivery. Only the first call reaches the broker.
func (d *Delivery) Ack(ctx context.Context) error {
	d.once.Do(func() {
		if d.ack != nil {
			d.err = d.ack(ctx)
		}
	})
	return d.err
}
