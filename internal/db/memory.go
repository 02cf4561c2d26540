package db

import (
	"context"
	"slices"
	"strings"
	"sync"

	"law_arch/internal/models"
)

// MemoryStore keeps records in process. Used by tests and dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sections map[string]models.SectionRecord
	acts     map[string]models.ActRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sections: make(map[string]models.SectionRecord),
		acts:     make(map[string]models.ActRecord),
	}
}

func (m *MemoryStore) UpsertSection(_ context.Context, rec models.SectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections[rec.Key] = rec
	return nil
}

func (m *MemoryStore) GetSection(_ context.Context, key string) (*models.SectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sections[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) SectionsByAct(_ context.Context, actKey string) ([]models.SectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SectionRecord
	for _, rec := range m.sections {
		if rec.ActKey == actKey {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b models.SectionRecord) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out, nil
}

func (m *MemoryStore) UpsertAct(_ context.Context, rec models.ActRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.SectionKeys = slices.Clone(rec.SectionKeys)
	m.acts[rec.Key] = rec
	return nil
}

func (m *MemoryStore) GetAct(_ context.Context, key string) (*models.ActRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.acts[key]
	if !ok {
		return nil, nil
	}
	rec.SectionKeys = slices.Clone(rec.SectionKeys)
	return &rec, nil
}

func (m *MemoryStore) Stats(_ context.Context, jurisdiction string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st Stats
	for _, rec := range m.sections {
		if rec.Jurisdiction == jurisdiction {
			st.Sections++
		}
	}
	for _, rec := range m.acts {
		if rec.Jurisdiction == jurisdiction {
			st.Acts++
		}
	}
	return st, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
