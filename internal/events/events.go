// README: Ride/group lifecycle events and their publishers (Kafka, no-op).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"carpool/internal/types"
)

const (
	RideRequested  = "ride.requested"
	GroupMatched   = "group.matched"
	GroupAccepted  = "group.accepted"
	GroupCompleted = "group.completed"
)

type Event struct {
	Type      string     `json:"type"`
	RideID    types.ID   `json:"rideId,omitempty"`
	GroupID   types.ID   `json:"groupId,omitempty"`
	RiderIDs  []types.ID `json:"riderIds,omitempty"`
	DriverID  types.ID   `json:"driverId,omitempty"`
	TotalFare float64    `json:"totalFare,omitempty"`
	At        time.Time  `json:"at"`
}

// Key is hashed onto a partition, keeping one group's events in order.
func (e Event) Key() string {
	if e.GroupID != "" {
		return string(e.GroupID)
	}
	return string(e.RideID)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaPublisher{writer: w, timeout: 2 * time.Second}
}

func Encode(e Event) (kafka.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(e.Key()), Value: b, Time: e.At}, nil
}

func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := Encode(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
