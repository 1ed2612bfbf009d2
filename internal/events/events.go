// Package events publishes work-order and equipment lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Event names, published under <prefix>/<entity>/<name>.
const (
	RequestCreated     = "created"
	RequestStarted     = "started"
	RequestDone        = "done"
	RequestCancelled   = "cancelled"
	RequestOverdue     = "overdue"
	EquipmentScrapped  = "scrapped"
	EquipmentActivated = "activated"
)

// Entities.
const (
	EntityRequest   = "request"
	EntityEquipment = "equipment"
)

// Event is the payload of one published message.
type Event struct {
	Entity     string                 `json:"entity"`
	Name       string                 `json:"event"`
	ID         string                 `json:"id"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher delivers events. Delivery is best-effort: implementations log
// failures instead of returning them.
type Publisher interface {
	Publish(ctx context.Context, e Event)
	Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close()                         {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Close() {}

// Events returns a copy of what has been published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns "<entity>/<event>" for each published event, in order.
func (r *Recorder) Names() []string {
	var names []string
	for _, e := range r.Events() {
		names = append(names, e.Entity+"/"+e.Name)
	}
	return names
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	TopicPrefix    string
	ConnectTimeout time.Duration
}

// MQTTPublisher publishes JSON events at QoS 1, not retained.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is not configured")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	log.WithFields(log.Fields{"broker": cfg.Broker, "client_id": cfg.ClientID}).Info("Connected to MQTT broker")
	return &MQTTPublisher{client: client, prefix: cfg.TopicPrefix, timeout: cfg.ConnectTimeout}, nil
}

// Topic returns the topic an event is published on.
func Topic(prefix string, e Event) string {
	parts := []string{e.Entity, e.Name}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append([]string{p}, parts...)
	}
	return strings.Join(parts, "/")
}

func (p *MQTTPublisher) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.WithError(err).WithField("event", e.Name).Error("Failed to encode event")
		return
	}
	topic := Topic(p.prefix, e)
	token := p.client.Publish(topic, 1, false, payload)

	wait := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < wait {
			wait = d
		}
	}
	if !token.WaitTimeout(wait) {
		log.WithField("topic", topic).Warn("Timed out publishing event")
		return
	}
	if err := token.Error(); err != nil {
		log.WithError(err).WithField("topic", topic).Error("Failed to publish event")
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
