package capacity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/logger"
)

const defaultSnapshotTTL = 30 * time.Second

// snapshotStore is the redis surface the cache uses.
type snapshotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SnapshotKey(providerID string) string
}

// CachedReader fronts a Reader with a short-lived redis cache for single
// provider lookups. List queries pass through untouched: they feed matching
// rounds and must see the live table. Any cache failure falls back to the
// inner reader, so a degraded redis only costs the round trip.
type CachedReader struct {
	inner Reader
	store snapshotStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedReader wraps inner with a snapshot cache. A non-positive ttl
// falls back to the default.
func NewCachedReader(inner Reader, store snapshotStore, ttl time.Duration, logg *logger.Logger) *CachedReader {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &CachedReader{inner: inner, store: store, ttl: ttl, logg: logg}
}

// SnapshotsBySpecialization delegates to the inner reader.
func (c *CachedReader) SnapshotsBySpecialization(ctx context.Context, specialization string, limit int) ([]models.ProviderCapacity, error) {
	return c.inner.SnapshotsBySpecialization(ctx, specialization, limit)
}

// EmergencySnapshots delegates to the inner reader.
func (c *CachedReader) EmergencySnapshots(ctx context.Context, specialization string, limit int) ([]models.ProviderCapacity, error) {
	return c.inner.EmergencySnapshots(ctx, specialization, limit)
}

// Snapshot serves the provider row from redis when a fresh copy exists,
// otherwise reads through and repopulates the cache best-effort.
func (c *CachedReader) Snapshot(ctx context.Context, providerID uuid.UUID) (*models.ProviderCapacity, error) {
	key := c.store.SnapshotKey(providerID.String())
	if raw, err := c.store.Get(ctx, key); err == nil {
		var snap models.ProviderCapacity
		if err := json.Unmarshal([]byte(raw), &snap); err == nil {
			return &snap, nil
		}
		c.warn(ctx, "discarding unreadable capacity snapshot cache entry")
	}

	snap, err := c.inner.Snapshot(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(snap); err == nil {
		if err := c.store.Set(ctx, key, encoded, c.ttl); err != nil {
			c.warn(ctx, "capacity snapshot cache write failed")
		}
	}
	return snap, nil
}

func (c *CachedReader) warn(ctx context.Context, msg string) {
	if c.logg != nil {
		c.logg.Warn(ctx, msg)
	}
}
