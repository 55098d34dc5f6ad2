// Package memstore is an in-memory ledger backend with optimistic concurrency.
//
// Every key carries the version of the commit that last wrote it. A
// transaction remembers the version of each key it reads and buffers its
// writes; commit re-checks the read set under the store lock and fails with
// service.ErrConflict if anything it read has since changed. Reads re-check
// the read set too, so a transaction body never sees two different commits.
package memstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"runepoints/models"
	"runepoints/service"
)

type entry struct {
	version uint64
	value   any
}

// Store holds committed state. It is safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	data          map[string]*entry
	history       map[string][]*models.BalanceHistory
	commits       uint64
	nextHistoryID int64

	// conflictsToInject makes the next N commits fail, for tests
	conflictsToInject int
}

// New creates an empty store
func New() *Store {
	return &Store{
		data:    make(map[string]*entry),
		history: make(map[string][]*models.BalanceHistory),
	}
}

// InjectConflicts makes the next n commits fail with ErrConflict
func (s *Store) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflictsToInject = n
}

// Commits returns how many transactions have committed writes
func (s *Store) Commits() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// write is a buffered mutation. A marker write only bumps the key's version.
type write struct {
	value  any
	marker bool
}

type txn struct {
	store    *Store
	readOnly bool
	reads    map[string]uint64
	writes   map[string]write
	order    []string
	appends  []*models.BalanceHistory
}

func newTxn(store *Store, readOnly bool) *txn {
	return &txn{
		store:    store,
		readOnly: readOnly,
		reads:    make(map[string]uint64),
		writes:   make(map[string]write),
	}
}

// validateLocked reports whether every key read so far is unchanged. Caller holds the store lock.
func (t *txn) validateLocked() error {
	for key, version := range t.reads {
		current := uint64(0)
		if e, ok := t.store.data[key]; ok {
			current = e.version
		}
		if current != version {
			return fmt.Errorf("%w: %s changed", service.ErrConflict, key)
		}
	}
	return nil
}

func (t *txn) readLocked(key string) (any, bool) {
	e, ok := t.store.data[key]
	if _, seen := t.reads[key]; !seen {
		if ok {
			t.reads[key] = e.version
		} else {
			t.reads[key] = 0
		}
	}
	if !ok || e.value == nil {
		return nil, false
	}
	return e.value, true
}

// get reads a key, preferring this transaction's own buffered write
func (t *txn) get(key string) (any, bool, error) {
	if w, ok := t.writes[key]; ok && !w.marker {
		return cloneValue(w.value), true, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if err := t.validateLocked(); err != nil {
		return nil, false, err
	}
	v, ok := t.readLocked(key)
	if !ok {
		return nil, false, nil
	}
	return cloneValue(v), true, nil
}

// scan reads the marker guarding a key range and every key under prefix,
// including keys this transaction has written but not committed.
func (t *txn) scan(marker, prefix string) ([]any, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if err := t.validateLocked(); err != nil {
		return nil, err
	}
	t.readLocked(marker)

	keys := make(map[string]struct{})
	for key := range t.store.data {
		if strings.HasPrefix(key, prefix) {
			keys[key] = struct{}{}
		}
	}
	for key, w := range t.writes {
		if !w.marker && strings.HasPrefix(key, prefix) {
			keys[key] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	out := make([]any, 0, len(sorted))
	for _, key := range sorted {
		if w, ok := t.writes[key]; ok && !w.marker {
			out = append(out, cloneValue(w.value))
			continue
		}
		if v, ok := t.readLocked(key); ok {
			out = append(out, cloneValue(v))
		}
	}
	return out, nil
}

func (t *txn) put(key string, value any) error {
	if t.readOnly {
		return fmt.Errorf("write to %s in a read-only transaction", key)
	}
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = write{value: cloneValue(value)}
	return nil
}

// touch bumps a marker key so that transactions which scanned its range conflict
func (t *txn) touch(marker string) {
	if _, ok := t.writes[marker]; ok {
		return
	}
	t.order = append(t.order, marker)
	t.writes[marker] = write{marker: true}
}

func (t *txn) appendHistory(h *models.BalanceHistory) error {
	if t.readOnly {
		return fmt.Errorf("history append in a read-only transaction")
	}
	t.appends = append(t.appends, cloneHistory(h))
	return nil
}

// commit validates the read set and applies the buffered writes atomically.
// It returns the ids assigned to appended history entries.
func (t *txn) commit() ([]int64, error) {
	if len(t.writes) == 0 && len(t.appends) == 0 {
		return nil, nil
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictsToInject > 0 {
		s.conflictsToInject--
		return nil, fmt.Errorf("%w: injected", service.ErrConflict)
	}
	if err := t.validateLocked(); err != nil {
		return nil, err
	}

	s.commits++
	version := s.commits
	for _, key := range t.order {
		w := t.writes[key]
		e, ok := s.data[key]
		if !ok {
			e = &entry{}
			s.data[key] = e
		}
		e.version = version
		if !w.marker {
			e.value = w.value
		}
	}

	ids := make([]int64, 0, len(t.appends))
	for _, h := range t.appends {
		s.nextHistoryID++
		h.ID = s.nextHistoryID
		s.history[h.UserID] = append(s.history[h.UserID], h)
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// historyFor returns committed history for the user plus this transaction's pending appends, newest first
func (t *txn) historyFor(userID string, limit int) []*models.BalanceHistory {
	t.store.mu.Lock()
	committed := t.store.history[userID]
	entries := make([]*models.BalanceHistory, 0, len(committed)+len(t.appends))
	for _, h := range committed {
		entries = append(entries, cloneHistory(h))
	}
	t.store.mu.Unlock()

	for _, h := range t.appends {
		if h.UserID == userID {
			entries = append(entries, cloneHistory(h))
		}
	}

	// append order is commit order, which is newest last
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
