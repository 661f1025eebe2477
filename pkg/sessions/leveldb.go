package sessions

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

const (
	levelRecordPrefix = "session/"
	levelIDPrefix     = "id/"
	levelSeqKey       = "meta/seq"
)

// LevelStore is an embedded durable Repository. Keys embed inverted
// timestamps and sequence numbers so a forward scan yields newest first.
type LevelStore struct {
	mu  sync.RWMutex
	db  *leveldb.DB
	seq uint64
}

func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, &PersistenceError{Store: "leveldb", Err: err}
	}
	return NewLevelStore(db)
}

func NewLevelStore(db *leveldb.DB) (*LevelStore, error) {
	s := &LevelStore{db: db}
	raw, err := db.Get([]byte(levelSeqKey), nil)
	switch {
	case err == leveldb.ErrNotFound:
	case err != nil:
		return nil, &PersistenceError{Store: "leveldb", Err: err}
	case len(raw) == 8:
		s.seq = binary.BigEndian.Uint64(raw)
	}
	return s, nil
}

func levelKey(record models.SessionRecord, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%019d/%020d",
		levelRecordPrefix,
		math.MaxInt64-levelNanos(record.CreatedAt),
		math.MaxUint64-seq,
	))
}

// levelNanos clamps t to the range UnixNano can represent without going
// negative, so inverted keys stay 19 digits wide.
func levelNanos(t time.Time) int64 {
	if t.Before(time.Unix(0, 0)) {
		return 0
	}
	if t.After(time.Unix(0, math.MaxInt64)) {
		return math.MaxInt64
	}
	return t.UnixNano()
}

func levelIDKey(id string) []byte {
	return []byte(levelIDPrefix + id)
}

// Append stores record once per id. A record whose id is already present is
// ignored.
func (s *LevelStore) Append(ctx context.Context, record models.SessionRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID != "" {
		exists, err := s.db.Has(levelIDKey(record.ID), nil)
		if err != nil {
			return &PersistenceError{Store: "leveldb", Err: err}
		}
		if exists {
			return nil
		}
	}

	next := s.seq + 1
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, next)
	key := levelKey(record, next)

	batch := new(leveldb.Batch)
	batch.Put(key, value)
	if record.ID != "" {
		batch.Put(levelIDKey(record.ID), key)
	}
	batch.Put([]byte(levelSeqKey), seqBytes)
	if err := s.db.Write(batch, nil); err != nil {
		return &PersistenceError{Store: "leveldb", Err: err}
	}
	s.seq = next
	return nil
}

func (s *LevelStore) Latest(ctx context.Context, n int) ([]models.SessionRecord, error) {
	if n <= 0 {
		return []models.SessionRecord{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	iter := s.db.NewIterator(util.BytesPrefix([]byte(levelRecordPrefix)), nil)
	defer iter.Release()

	out := make([]models.SessionRecord, 0, n)
	for iter.Next() && len(out) < n {
		var record models.SessionRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		if record.Contribs == nil {
			record.Contribs = map[string]float64{}
		}
		out = append(out, record)
	}
	if err := iter.Error(); err != nil {
		return nil, &PersistenceError{Store: "leveldb", Err: err}
	}
	return out, nil
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}
