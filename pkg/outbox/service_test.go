package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	aggregateID := uuid.New()
	err := svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventAssignmentCreated,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   aggregateID,
		Version:       1,
		OccurredAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Data:          map[string]string{"caseId": "abc"},
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	require.Equal(t, enums.EventAssignmentCreated, row.EventType)
	require.Equal(t, aggregateID, row.AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
}

func TestEmitRequiresTransaction(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(NewRepository(conn), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestFetchUnpublishedSkipsExhaustedRows(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)

	fresh := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventAssignmentCreated,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	exhausted := fresh
	exhausted.ID = uuid.New()
	exhausted.AttemptCount = 10
	require.NoError(t, conn.Create(&fresh).Error)
	require.NoError(t, conn.Create(&exhausted).Error)

	rows, err := repo.FetchUnpublished(10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, fresh.ID, rows[0].ID)
}

func TestDeletePublishedBefore(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)

	published := time.Now().Add(-48 * time.Hour)
	old := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventAssignmentExpired,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		PublishedAt:   &published,
	}
	require.NoError(t, conn.Create(&old).Error)

	removed, err := repo.DeletePublishedBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}
