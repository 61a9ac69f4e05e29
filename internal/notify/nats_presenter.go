package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"timekeeper/internal/config"
	"timekeeper/internal/domain"

	"github.com/nats-io/nats.go"
)

const eventStreamMaxAge = 24 * time.Hour

// EventType marks notification lifecycle step published to NATS.
type EventType string

const (
	// EventPresented is published when a notification becomes the queue head.
	EventPresented EventType = "presented"
	// EventClosed is published when the head notification is acknowledged or dismissed.
	EventClosed EventType = "closed"
)

// Event is one notification lifecycle record.
// Params: lifecycle step, notification snapshot, and acknowledgment choice for closes.
// Returns: JSON payload published on the events subject.
type Event struct {
	Type         EventType           `json:"type"`
	Notification domain.Notification `json:"notification"`
	Choice       domain.Choice       `json:"choice,omitempty"`
	At           time.Time           `json:"at"`
}

// NATSPresenter publishes notification lifecycle events into a JetStream stream.
// Params: NATS connection and publish subject.
// Returns: presenter for external dashboards and companion devices.
type NATSPresenter struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	now     func() time.Time
}

// NewNATSPresenter connects to NATS and ensures the events stream exists.
// Params: NATS presenter config.
// Returns: initialized presenter or setup error.
func NewNATSPresenter(cfg config.NATSPresenter) (*NATSPresenter, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect notify nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for notify events: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, cfg.Subject); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSPresenter{nc: nc, js: js, subject: cfg.Subject, now: time.Now}, nil
}

// Name returns presenter key.
func (p *NATSPresenter) Name() string {
	return "nats"
}

// Present publishes presented event.
func (p *NATSPresenter) Present(ctx context.Context, n domain.Notification) error {
	return p.publish(ctx, Event{Type: EventPresented, Notification: n})
}

// Close publishes closed event with the acknowledgment choice.
func (p *NATSPresenter) Close(ctx context.Context, n domain.Notification, ack domain.Ack) error {
	return p.publish(ctx, Event{Type: EventClosed, Notification: n, Choice: ack.Choice})
}

// Shutdown closes presenter NATS connection.
func (p *NATSPresenter) Shutdown() error {
	if p == nil || p.nc == nil {
		return nil
	}
	p.nc.Close()
	return nil
}

func (p *NATSPresenter) publish(ctx context.Context, event Event) error {
	event.At = p.now().UTC()
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notify event: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = body
	// Dedup key: one event per notification and lifecycle step.
	msg.Header.Set("Nats-Msg-Id", event.Notification.ID+":"+string(event.Type))
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish notify event: %w", err)
	}
	return nil
}

// ensureStream ensures the events stream exists.
// Params: JetStream context and stream/subject names.
// Returns: stream create/lookup error.
func ensureStream(js nats.JetStreamContext, streamName, subject string) error {
	if _, err := js.StreamInfo(streamName); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) && !strings.Contains(strings.ToLower(err.Error()), "stream not found") {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    eventStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}
