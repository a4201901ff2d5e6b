package capacity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
)

type fakeReader struct {
	snap  *models.ProviderCapacity
	err   error
	calls int
}

func (f *fakeReader) SnapshotsBySpecialization(context.Context, string, int) ([]models.ProviderCapacity, error) {
	return nil, nil
}

func (f *fakeReader) EmergencySnapshots(context.Context, string, int) ([]models.ProviderCapacity, error) {
	return nil, nil
}

func (f *fakeReader) Snapshot(context.Context, uuid.UUID) (*models.ProviderCapacity, error) {
	f.calls++
	return f.snap, f.err
}

type fakeStore struct {
	values  map[string]string
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", errors.New("missing key")
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.lastTTL = ttl
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = string(value.([]byte))
	return nil
}

func (f *fakeStore) SnapshotKey(providerID string) string {
	return "test:capacity:" + providerID
}

func TestSnapshotCacheHitSkipsInnerReader(t *testing.T) {
	providerID := uuid.New()
	cached := models.ProviderCapacity{ProviderID: providerID, ActiveCases: 7, MaxActiveCases: 50}
	encoded, err := json.Marshal(cached)
	require.NoError(t, err)

	store := &fakeStore{values: map[string]string{"test:capacity:" + providerID.String(): string(encoded)}}
	inner := &fakeReader{}
	reader := NewCachedReader(inner, store, time.Minute, nil)

	got, err := reader.Snapshot(context.Background(), providerID)
	require.NoError(t, err)
	require.Equal(t, cached.ActiveCases, got.ActiveCases)
	require.Zero(t, inner.calls)
}

func TestSnapshotCacheMissReadsThroughAndPopulates(t *testing.T) {
	providerID := uuid.New()
	inner := &fakeReader{snap: &models.ProviderCapacity{ProviderID: providerID, ActiveCases: 3}}
	store := &fakeStore{}
	reader := NewCachedReader(inner, store, time.Minute, nil)

	got, err := reader.Snapshot(context.Background(), providerID)
	require.NoError(t, err)
	require.Equal(t, 3, got.ActiveCases)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, time.Minute, store.lastTTL)

	var persisted models.ProviderCapacity
	raw := store.values["test:capacity:"+providerID.String()]
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	require.Equal(t, providerID, persisted.ProviderID)
}

func TestSnapshotCacheFallsBackWhenStoreFails(t *testing.T) {
	providerID := uuid.New()
	inner := &fakeReader{snap: &models.ProviderCapacity{ProviderID: providerID, ActiveCases: 9}}
	store := &fakeStore{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	reader := NewCachedReader(inner, store, time.Minute, nil)

	got, err := reader.Snapshot(context.Background(), providerID)
	require.NoError(t, err)
	require.Equal(t, 9, got.ActiveCases)
	require.Equal(t, 1, inner.calls)
}

func TestSnapshotCacheDiscardsCorruptEntries(t *testing.T) {
	providerID := uuid.New()
	inner := &fakeReader{snap: &models.ProviderCapacity{ProviderID: providerID, ActiveCases: 4}}
	store := &fakeStore{values: map[string]string{"test:capacity:" + providerID.String(): "{not json"}}
	reader := NewCachedReader(inner, store, time.Minute, nil)

	got, err := reader.Snapshot(context.Background(), providerID)
	require.NoError(t, err)
	require.Equal(t, 4, got.ActiveCases)
	require.Equal(t, 1, inner.calls)
}
