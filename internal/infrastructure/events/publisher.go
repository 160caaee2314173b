// Package events records listing lifecycle events and fans them out to the configured sinks.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"landlease/internal/domain"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Publisher receives one event per successful create or delete.
type Publisher interface {
	Publish(ctx context.Context, ev *domain.ListingEvent) error
}

// NewEvent builds an event with data marshalled as its JSON payload.
func NewEvent(eventType, listingID, ownerID string, data interface{}) *domain.ListingEvent {
	raw, err := json.Marshal(data)
	if err != nil || data == nil {
		raw = []byte("{}")
	}
	return &domain.ListingEvent{
		ListingID: listingID,
		OwnerID:   ownerID,
		EventType: eventType,
		EventData: datatypes.JSON(raw),
		CreatedAt: time.Now().UTC(),
	}
}

// GormRecorder appends events to the ListingEvents table.
type GormRecorder struct {
	DB *gorm.DB
}

func (g *GormRecorder) Publish(ctx context.Context, ev *domain.ListingEvent) error {
	return g.DB.WithContext(ctx).Create(ev).Error
}

// NATSPublisher publishes events as JSON on "<prefix>.created" and "<prefix>.deleted".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("landlease"))
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "listings"
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + strings.ToLower(eventType)
}

func (p *NATSPublisher) Publish(ctx context.Context, ev *domain.ListingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(ev.EventType), data)
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// Multi publishes to every sink and joins their errors. A failing sink does not stop the others.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev *domain.ListingEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("listing_id", ev.ListingID).Str("event_type", ev.EventType).Msg("listing event publish failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
