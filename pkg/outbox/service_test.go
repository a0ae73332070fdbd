package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  published_at DATETIME,
  created_at DATETIME
);`).Error)
	return db
}

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	orderID := uuid.New()
	actorID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: actorID, Role: "customer"},
			Data:          map[string]any{"order_number": 100001},
			Version:       1,
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, enums.EventOrderCreated, row.EventType)
	assert.Equal(t, orderID, row.AggregateID)
	assert.Nil(t, row.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actorID, envelope.Actor.UserID)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestFetchUnpublishedSkipsExhaustedAndPublished(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	fresh := seedEvent(t, db, 0, false)
	seedEvent(t, db, 5, false)
	seedEvent(t, db, 0, true)

	rows, err := repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fresh, rows[0].ID)
}

func TestMarkFailedIncrementsAttempts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	id := seedEvent(t, db, 1, false)
	require.NoError(t, repo.MarkFailed(id, fmt.Errorf("topic unreachable")))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	assert.Equal(t, 2, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "topic unreachable", *row.LastError)
}

func seedEvent(t *testing.T, db *gorm.DB, attempts int, published bool) uuid.UUID {
	t.Helper()

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  attempts,
	}
	require.NoError(t, db.Create(&row).Error)
	if published {
		require.NoError(t, NewRepository(db).MarkPublished(row.ID))
	}
	return row.ID
}
