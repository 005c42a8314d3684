// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	models "commerce-api/model"

	"github.com/segmentio/kafka-go"
)

type Type string

const (
	OrderCreated       Type = "OrderCreated"
	OrderStatusChanged Type = "OrderStatusChanged"
	OrderDeleted       Type = "OrderDeleted"
)

// Item is a line item as carried on the wire.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type Event struct {
	Type       Type               `json:"type"`
	OrderID    int64              `json:"order_id"`
	UserID     int64              `json:"user_id"`
	Status     models.OrderStatus `json:"status,omitempty"`
	Items      []Item             `json:"items,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// ForOrder builds an event describing o.
func ForOrder(t Type, o *models.Order, at time.Time) Event {
	ev := Event{Type: t, OrderID: o.ID, UserID: o.UserID, Status: o.Status, OccurredAt: at}
	for _, li := range o.Items {
		ev.Items = append(ev.Items, Item{ProductID: li.ProductID, Quantity: li.Quantity, Price: li.Price.String()})
	}
	return ev
}

// Message encodes the event as a Kafka message keyed by order id, so every
// event of one order lands on the same partition.
func (e Event) Message() (kafka.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
