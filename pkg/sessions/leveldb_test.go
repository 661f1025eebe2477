package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

func newMemLevelDB(t *testing.T) (*leveldb.DB, storage.Storage) {
	t.Helper()
	stor := storage.NewMemStorage()
	db, err := leveldb.Open(stor, nil)
	require.NoError(t, err)
	return db, stor
}

func TestLevelStoreNewestFirst(t *testing.T) {
	ctx := context.Background()
	db, _ := newMemLevelDB(t)
	store, err := NewLevelStore(db)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(ctx, makeRecord(1, baseTime)))
	require.NoError(t, store.Append(ctx, makeRecord(2, baseTime.Add(time.Hour))))
	require.NoError(t, store.Append(ctx, makeRecord(3, baseTime)))
	require.NoError(t, store.Append(ctx, makeRecord(4, baseTime.Add(-time.Hour))))

	got, err := store.Latest(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-002", "s-003", "s-001"}, ids(got))
	assert.Equal(t, map[string]float64{"age": 2}, got[0].Contribs)
	assert.Equal(t, 42.0, got[0].PatientFeatures.Age)
	assert.True(t, got[0].CreatedAt.Equal(baseTime.Add(time.Hour)))

	none, err := store.Latest(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLevelStoreSequenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	stor := storage.NewMemStorage()

	db, err := leveldb.Open(stor, nil)
	require.NoError(t, err)
	store, err := NewLevelStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, makeRecord(1, baseTime)))
	require.NoError(t, store.Close())

	db, err = leveldb.Open(stor, nil)
	require.NoError(t, err)
	reopened, err := NewLevelStore(db)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Append(ctx, makeRecord(2, baseTime)))
	got, err := reopened.Latest(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-002", "s-001"}, ids(got))
}

func TestLevelStoreClosedIsPersistenceError(t *testing.T) {
	db, _ := newMemLevelDB(t)
	store, err := NewLevelStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Append(context.Background(), makeRecord(1, baseTime))
	assert.True(t, IsPersistenceError(err))
}

func TestLevelStoreIgnoresDuplicateID(t *testing.T) {
	ctx := context.Background()
	db, _ := newMemLevelDB(t)
	store, err := NewLevelStore(db)
	require.NoError(t, err)
	defer store.Close()

	record := makeRecord(1, baseTime)
	require.NoError(t, store.Append(ctx, record))
	require.NoError(t, store.Append(ctx, record))
	require.NoError(t, store.Append(ctx, makeRecord(2, baseTime)))

	got, err := store.Latest(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-002", "s-001"}, ids(got))
}

func TestLevelStorePre1970SortsOldest(t *testing.T) {
	ctx := context.Background()
	db, _ := newMemLevelDB(t)
	store, err := NewLevelStore(db)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(ctx, makeRecord(1, time.Time{})))
	require.NoError(t, store.Append(ctx, makeRecord(2, time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, store.Append(ctx, makeRecord(3, baseTime)))

	got, err := store.Latest(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-003", "s-002", "s-001"}, ids(got))
}

func TestLevelKeyWidthIsStable(t *testing.T) {
	for _, ts := range []time.Time{{}, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), baseTime, time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC)} {
		key := levelKey(makeRecord(1, ts), 1)
		assert.Len(t, key, len(levelRecordPrefix)+19+1+20, ts.String())
	}
}
