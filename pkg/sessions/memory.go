package sessions

import (
	"context"
	"sync"

	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/observability/metrics"
)

const DefaultCapacity = 200

// MemoryLog is a bounded FIFO. Once full, each append evicts the oldest record.
type MemoryLog struct {
	mu       sync.RWMutex
	items    []sequenced
	head     int
	size     int
	nextSeq  uint64
	capacity int
}

func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryLog{
		items:    make([]sequenced, capacity),
		capacity: capacity,
	}
}

func (m *MemoryLog) Capacity() int {
	return m.capacity
}

func (m *MemoryLog) Append(ctx context.Context, record models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	entry := sequenced{seq: m.nextSeq, record: cloneRecord(record)}

	if m.size < m.capacity {
		m.items[(m.head+m.size)%m.capacity] = entry
		m.size++
	} else {
		// full: overwrite the oldest slot and advance the head
		m.items[m.head] = entry
		m.head = (m.head + 1) % m.capacity
	}
	metrics.ObserveSessionLogSize(m.size)
	return nil
}

func (m *MemoryLog) Latest(ctx context.Context, n int) ([]models.SessionRecord, error) {
	if n <= 0 {
		return []models.SessionRecord{}, nil
	}

	m.mu.RLock()
	snapshot := make([]sequenced, 0, m.size)
	for i := 0; i < m.size; i++ {
		snapshot = append(snapshot, m.items[(m.head+i)%m.capacity])
	}
	m.mu.RUnlock()

	sortNewestFirst(snapshot)
	if n > len(snapshot) {
		n = len(snapshot)
	}
	out := make([]models.SessionRecord, n)
	for i := 0; i < n; i++ {
		out[i] = cloneRecord(snapshot[i].record)
	}
	return out, nil
}

func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryLog) Close() error {
	return nil
}
