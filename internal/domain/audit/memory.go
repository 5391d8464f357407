package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and single-node
// development runs. Appends are serialized under the mutex, so sequence
// numbers are gapless by construction.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) Append(_ context.Context, e *Entry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *e
	stored.Seq = int64(len(m.entries)) + 1
	m.entries = append(m.entries, &stored)
	e.Seq = stored.Seq
	return stored.Seq, nil
}

func (m *MemoryRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Entry
	for _, e := range m.entries {
		if matches(e, f) {
			matched = append(matched, e)
		}
	}

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*Entry, end-offset)
	for i, e := range matched[offset:end] {
		copied := *e
		out[i] = &copied
	}
	return out, total, nil
}

func matches(e *Entry, f Filter) bool {
	if f.UserID != nil && e.UserID != *f.UserID {
		return false
	}
	if f.PatientID != nil && (e.PatientID == nil || *e.PatientID != *f.PatientID) {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !e.Timestamp.Before(*f.Until) {
		return false
	}
	return true
}
