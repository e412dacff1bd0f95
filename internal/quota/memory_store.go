package quota

import "sync"

// MemoryStore keeps authorization records and counters in-process.
// Used by tests and single-node development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]AuthorizationRecord
	usage   map[string]int // identity|model|day -> prompts used
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]AuthorizationRecord),
		usage:   make(map[string]int),
	}
}

// PutAuthorization stores or replaces a record, keyed by identity.
func (m *MemoryStore) PutAuthorization(rec AuthorizationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.IdentityID] = rec
}

// FindAuthorization returns the active record, or nil when absent/inactive.
func (m *MemoryStore) FindAuthorization(identityID string) (*AuthorizationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[identityID]
	if !ok || !rec.Active {
		return nil, nil
	}
	out := rec
	out.Models = append([]ModelLimit(nil), rec.Models...)
	return &out, nil
}

// UsageFor returns the counter; a missing entry reads as zero.
func (m *MemoryStore) UsageFor(identityID, modelName, day string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage[identityID+"|"+modelName+"|"+day], nil
}

// IncrementUsage adds one prompt to the counter.
func (m *MemoryStore) IncrementUsage(identityID, modelName, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[identityID+"|"+modelName+"|"+day]++
	return nil
}
