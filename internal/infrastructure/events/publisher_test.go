package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"landlease/internal/domain"
	"landlease/internal/infrastructure/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	got []*domain.ListingEvent
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, ev *domain.ListingEvent) error {
	r.got = append(r.got, ev)
	return r.err
}

func TestNewEvent_Payload(t *testing.T) {
	ev := NewEvent(domain.ListingEventCreated, "l1", "u1", map[string]int{"images": 2})
	assert.Equal(t, "l1", ev.ListingID)
	assert.Equal(t, "u1", ev.OwnerID)
	assert.Equal(t, domain.ListingEventCreated, ev.EventType)

	var data map[string]int
	require.NoError(t, json.Unmarshal(ev.EventData, &data))
	assert.Equal(t, 2, data["images"])

	empty := NewEvent(domain.ListingEventDeleted, "l1", "u1", nil)
	assert.JSONEq(t, `{}`, string(empty.EventData))
}

func TestGormRecorder_Publish(t *testing.T) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	rec := &GormRecorder{DB: db}
	require.NoError(t, rec.Publish(context.Background(), NewEvent(domain.ListingEventCreated, "l1", "u1", nil)))

	var rows []domain.ListingEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "l1", rows[0].ListingID)
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	bad := &recordingPublisher{err: errors.New("bus down")}
	good := &recordingPublisher{}
	m := Multi{bad, nil, good}

	err := m.Publish(context.Background(), NewEvent(domain.ListingEventDeleted, "l1", "u1", nil))
	require.Error(t, err)
	assert.Len(t, bad.got, 1)
	assert.Len(t, good.got, 1)

	assert.NoError(t, Multi{good}.Publish(context.Background(), NewEvent(domain.ListingEventDeleted, "l2", "u1", nil)))
}

func TestNATSPublisher_Subject(t *testing.T) {
	p := &NATSPublisher{prefix: "lands"}
	assert.Equal(t, "lands.created", p.Subject(domain.ListingEventCreated))
	assert.Equal(t, "lands.deleted", p.Subject(domain.ListingEventDeleted))
}
