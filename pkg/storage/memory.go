package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	kv      map[string][]byte
	entries []JournalEntry
	closed  bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kv: make(map[string][]byte)}
}

var errClosed = errors.New("store closed")

func (s *MemoryStore) LoadSettings(_ context.Context, workspaceID string) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, &StorageError{Backend: "memory", Operation: "load_settings", Cause: errClosed}
	}
	data, ok := s.kv[settingsKey(workspaceID)]
	if !ok {
		return nil, ErrNotFound
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, &StorageError{Backend: "memory", Operation: "load_settings", Cause: err}
	}
	return &settings, nil
}

func (s *MemoryStore) SaveSettings(_ context.Context, workspaceID string, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return &StorageError{Backend: "memory", Operation: "save_settings", Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &StorageError{Backend: "memory", Operation: "save_settings", Cause: errClosed}
	}
	s.kv[settingsKey(workspaceID)] = data
	return nil
}

func (s *MemoryStore) AppendEntry(_ context.Context, entry *JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &StorageError{Backend: "memory", Operation: "append_entry", Cause: errClosed}
	}
	prepareEntry(entry)
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryStore) ListEntries(_ context.Context, opts ListOptions) ([]JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, &StorageError{Backend: "memory", Operation: "list_entries", Cause: errClosed}
	}
	var out []JournalEntry
	for _, e := range s.entries {
		if opts.WorkspaceID != "" && e.WorkspaceID != opts.WorkspaceID {
			continue
		}
		if opts.TicketID != "" && e.TicketID != opts.TicketID {
			continue
		}
		if !opts.Since.IsZero() && e.LoggedAt.Before(opts.Since) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *MemoryStore) PruneEntries(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.LoggedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// prepareEntry fills ID and LoggedAt.
func prepareEntry(entry *JournalEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now()
	}
}
