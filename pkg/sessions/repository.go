// Package sessions stores the append-only log of past predictions.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

// Repository is implemented by every session storage strategy.
//
// Latest returns at most n records ordered by CreatedAt descending, ties
// broken by most recent insertion. Append and Latest are serialized with
// respect to each other so readers never see a partial record.
type Repository interface {
	Append(ctx context.Context, record models.SessionRecord) error
	Latest(ctx context.Context, n int) ([]models.SessionRecord, error)
	Close() error
}

// PersistenceError reports a backing store that could not be reached.
type PersistenceError struct {
	Store string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session store %s unavailable: %v", e.Store, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// sequenced pairs a record with its insertion order for tie-breaking.
type sequenced struct {
	seq    uint64
	record models.SessionRecord
}

func sortNewestFirst(items []sequenced) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.record.CreatedAt.Equal(b.record.CreatedAt) {
			return a.record.CreatedAt.After(b.record.CreatedAt)
		}
		return a.seq > b.seq
	})
}

func cloneRecord(r models.SessionRecord) models.SessionRecord {
	out := r
	out.Contribs = make(map[string]float64, len(r.Contribs))
	for k, v := range r.Contribs {
		out.Contribs[k] = v
	}
	return out
}
