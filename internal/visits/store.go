package visits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"stationlog/internal/catalog"
	"stationlog/internal/storage"
)

// SnapshotKey is the fixed persistence key the serialized store lives under.
const SnapshotKey = "visits"

// Store is the single long-lived owner of all committed visit records: a
// mapping from station code to Record. It is mutated only by whole-record
// Commit/Remove, and each mutation persists the full serialized map before
// it reports success, so the in-memory state and the durable copy never
// observably diverge.
type Store struct {
	mu        sync.RWMutex
	records   map[string]Record
	snapshots storage.SnapshotStore
	logger    *slog.Logger
}

// Load builds a Store from persisted state. A missing or corrupt snapshot
// is treated as "no history": the store starts empty and Load never fails.
func Load(ctx context.Context, snapshots storage.SnapshotStore) *Store {
	s := &Store{
		records:   make(map[string]Record),
		snapshots: snapshots,
		logger:    slog.Default(),
	}

	data, err := snapshots.Load(ctx, SnapshotKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to load visit snapshot, starting empty", "error", err)
		}
		return s
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.WarnContext(ctx, "corrupt visit snapshot, starting empty", "error", err)
		return s
	}

	// Keys are authoritative; normalize any record whose embedded code
	// disagrees with the key it was stored under.
	for code, rec := range records {
		if rec.StationCode != code {
			rec.StationCode = code
			records[code] = rec
		}
	}

	s.records = records
	return s
}

// Get returns the committed record for a station code, if present.
// The returned record is a copy; mutating it does not affect the store.
func (s *Store) Get(stationCode string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[stationCode]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// All returns every committed record, sorted by station code.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationCode < out[j].StationCode })
	return out
}

// Commit replaces or inserts the entry for rec.StationCode and persists the
// full map. If persistence fails the in-memory state is left unchanged and
// the error is returned, so a successful Commit is always durable.
func (s *Store) Commit(ctx context.Context, rec Record) error {
	if rec.StationCode == "" {
		return fmt.Errorf("record has no station code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyRecords()
	next[rec.StationCode] = rec.Clone()

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.records = next
	return nil
}

// Remove deletes the entry for stationCode and persists the full map.
// Removing an absent key is a no-op success.
func (s *Store) Remove(ctx context.Context, stationCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[stationCode]; !ok {
		return nil
	}

	next := s.copyRecords()
	delete(next, stationCode)

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.records = next
	return nil
}

// Progress returns how many catalog stations have a committed record and
// the total number of stations across all lines. Store keys that do not
// match any catalog station are not counted as visited.
func (s *Store) Progress(cat *catalog.Catalog) (visited, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for code := range s.records {
		if _, ok := cat.StationByCode(code); ok {
			visited++
		}
	}
	return visited, cat.TotalStations()
}

// LineProgress describes visited counts for a single line.
type LineProgress struct {
	LineID  string `json:"lineId"`
	Name    string `json:"name"`
	Visited int    `json:"visited"`
	Total   int    `json:"total"`
}

// ProgressByLine returns visited/total counts per catalog line, in catalog
// order.
func (s *Store) ProgressByLine(cat *catalog.Catalog) []LineProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LineProgress, 0, len(cat.Lines()))
	for _, line := range cat.Lines() {
		lp := LineProgress{LineID: line.ID, Name: line.Name, Total: len(line.Stations)}
		for _, st := range line.Stations {
			if _, ok := s.records[st.Code]; ok {
				lp.Visited++
			}
		}
		out = append(out, lp)
	}
	return out
}

// copyRecords returns a shallow copy of the record map. Callers hold s.mu.
func (s *Store) copyRecords() map[string]Record {
	next := make(map[string]Record, len(s.records))
	for code, rec := range s.records {
		next[code] = rec
	}
	return next
}

// persist serializes the given map and writes it under SnapshotKey.
// Callers hold s.mu.
func (s *Store) persist(ctx context.Context, records map[string]Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to serialize visit records: %w", err)
	}
	if err := s.snapshots.Save(ctx, SnapshotKey, data); err != nil {
		return fmt.Errorf("failed to persist visit records: %w", err)
	}
	return nil
}
