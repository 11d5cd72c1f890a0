package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arnavt866/Content-Violation-Detection/internal/application"
	domain "github.com/arnavt866/Content-Violation-Detection/internal/domain/analysis"
)

// DefaultRecentLimit is used when RecentAnalyses gets a non-positive limit.
const DefaultRecentLimit = 10

const saveTimeout = 10 * time.Second

// Store implements the analysis record store: an in-memory history of
// analysis results with incrementally maintained aggregate statistics,
// mirrored to a durable snapshot after every mutation.
//
// Store is designed to be used concurrently and is thread-safe: every
// mutation runs to completion under the lock before any other caller
// observes state.
type Store struct {
	Repo  domain.SnapshotRepository
	Clock application.Clock

	// PersistFailure, when set, is invoked for every failed snapshot
	// write. Snapshot failures never propagate out of a mutation.
	PersistFailure func(error)

	mu       sync.Mutex
	history  []domain.AnalysisRecord // newest first
	stats    domain.Statistics
	filters  domain.Filters
	selected *domain.AnalysisRecord
	loading  bool
	err      error

	// write-through persistence worker; latest snapshot wins
	saveCh chan *domain.Snapshot
	done   chan struct{}
	closed bool
}

// NewStore builds an empty store around the given snapshot repository.
// repo may be nil for a purely in-memory store.
func NewStore(repo domain.SnapshotRepository, clock application.Clock) *Store {
	if clock == nil {
		clock = application.SystemClock{}
	}
	s := &Store{
		Repo:    repo,
		Clock:   clock,
		stats:   domain.NewStatistics(),
		filters: domain.DefaultFilters(),
	}
	if repo != nil {
		s.saveCh = make(chan *domain.Snapshot, 1)
		s.done = make(chan struct{})
		go s.saveLoop()
	}
	return s
}

//
// ==== LIFECYCLE ====
//

// Rehydrate replaces the store state with the persisted snapshot, if one
// exists. A snapshot carrying a different schema version is discarded and
// ErrSnapshotVersion returned; the store is still usable (empty defaults).
func (s *Store) Rehydrate(ctx context.Context) error {
	if s.Repo == nil {
		return nil
	}
	snap, err := s.Repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("snapshot load: %w", err)
	}
	if snap == nil {
		return nil
	}
	if snap.Version != domain.SnapshotVersion {
		return fmt.Errorf("%w: stored=%d current=%d",
			domain.ErrSnapshotVersion, snap.Version, domain.SnapshotVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make([]domain.AnalysisRecord, len(snap.History))
	for i, r := range snap.History {
		s.history[i] = r.Clone()
	}
	s.stats = snap.Statistics.Clone()
	if s.stats.AnalysisTypes == nil {
		s.stats.AnalysisTypes = make(map[string]int)
	}
	s.filters = snap.Filters.Clone()
	if s.filters.ViolationType == "" {
		s.filters.ViolationType = domain.ViolationTypeAll
	}
	s.selected = nil
	if snap.Selected != nil {
		sel := snap.Selected.Clone()
		s.selected = &sel
	}
	return nil
}

// Flush writes the current snapshot synchronously. Used at shutdown and
// wherever a caller needs the durable mirror to be current.
func (s *Store) Flush(ctx context.Context) error {
	if s.Repo == nil {
		return nil
	}
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return s.Repo.Save(ctx, snap)
}

// Close stops the persistence worker after draining any pending save.
// Mutations after Close still apply in memory but are no longer mirrored;
// use Flush for a final write.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.saveCh == nil || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.saveCh)
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

//
// ==== MUTATIONS ====
//

// AddAnalysis assigns a fresh ID and timestamp to the given record,
// prepends it to the history and updates the aggregate statistics.
// The stored record is returned.
func (s *Store) AddAnalysis(rec domain.AnalysisRecord) domain.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = domain.AnalysisID(uuid.New().String())
	rec.Timestamp = s.Clock.Now()

	s.history = append([]domain.AnalysisRecord{rec.Clone()}, s.history...)

	s.stats.TotalAnalyses++
	s.stats.ViolationsDetected += len(rec.Violations)
	if rec.Type != "" {
		s.stats.AnalysisTypes[rec.Type]++
	}
	if rec.Confidence > 0 {
		s.recalcAverageLocked()
	}

	s.persistLocked()
	return rec
}

// RemoveAnalysis deletes the record with the given id. Unknown ids are a
// silent no-op: callers cannot distinguish "already removed" from "never
// existed". Returns whether a record was removed.
func (s *Store) RemoveAnalysis(id domain.AnalysisID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	removed := s.history[idx]
	s.history = append(s.history[:idx], s.history[idx+1:]...)

	if s.stats.TotalAnalyses > 0 {
		s.stats.TotalAnalyses--
	}
	s.stats.ViolationsDetected -= len(removed.Violations)
	if s.stats.ViolationsDetected < 0 {
		s.stats.ViolationsDetected = 0
	}
	if removed.Type != "" {
		if n := s.stats.AnalysisTypes[removed.Type]; n > 1 {
			s.stats.AnalysisTypes[removed.Type] = n - 1
		} else {
			// 0 and absent are equivalent; keep the map tidy
			delete(s.stats.AnalysisTypes, removed.Type)
		}
	}
	s.recalcAverageLocked()

	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
	}

	s.persistLocked()
	return true
}

// UpdateAnalysis shallow-merges the patch into the record with the given
// id. Unknown ids are a silent no-op. Only a confidence change triggers a
// statistics recompute; totals, violation counts and type buckets do not
// react to updates. Callers that need to change those remove + re-add.
func (s *Store) UpdateAnalysis(id domain.AnalysisID, patch domain.RecordPatch) (domain.AnalysisRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.AnalysisRecord{}, false
	}

	rec := &s.history[idx]
	oldConfidence := rec.Confidence

	if patch.Type != nil {
		rec.Type = *patch.Type
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.Confidence != nil {
		rec.Confidence = *patch.Confidence
	}
	if patch.Violations != nil {
		vs := make([]domain.Violation, len(*patch.Violations))
		copy(vs, *patch.Violations)
		rec.Violations = vs
	}
	if len(patch.Extra) > 0 {
		if rec.Extra == nil {
			rec.Extra = make(map[string]any, len(patch.Extra))
		}
		for k, v := range patch.Extra {
			rec.Extra[k] = v
		}
	}

	if patch.Confidence != nil && *patch.Confidence != oldConfidence {
		s.recalcAverageLocked()
	}

	if s.selected != nil && s.selected.ID == id {
		sel := rec.Clone()
		s.selected = &sel
	}

	s.persistLocked()
	return rec.Clone(), true
}

// ClearHistory drops every record and resets statistics and selection.
// Filters and UI flags are untouched.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.stats = domain.NewStatistics()
	s.selected = nil
	s.persistLocked()
}

// SetFilters shallow-merges the patch into the current filters.
func (s *Store) SetFilters(patch domain.FilterPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.DateFrom != nil {
		t := *patch.DateFrom
		s.filters.DateFrom = &t
	}
	if patch.DateTo != nil {
		t := *patch.DateTo
		s.filters.DateTo = &t
	}
	if patch.ViolationType != nil {
		s.filters.ViolationType = *patch.ViolationType
	}
	if patch.SortBy != nil {
		s.filters.SortBy = *patch.SortBy
	}
	if patch.SortOrder != nil {
		s.filters.SortOrder = *patch.SortOrder
	}
	s.persistLocked()
}

// ResetFilters restores the documented filter defaults.
func (s *Store) ResetFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = domain.DefaultFilters()
	s.persistLocked()
}

// SetSelectedAnalysis selects the given record; nil clears the selection.
func (s *Store) SetSelectedAnalysis(rec *domain.AnalysisRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec == nil {
		s.selected = nil
	} else {
		sel := rec.Clone()
		s.selected = &sel
	}
	s.persistLocked()
}

// ClearSelectedAnalysis clears the selection.
func (s *Store) ClearSelectedAnalysis() {
	s.SetSelectedAnalysis(nil)
}

// SetLoading sets the UI loading flag. Not persisted.
func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

// SetError sets the host-reported error slot. Not persisted.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ClearError clears the error slot.
func (s *Store) ClearError() {
	s.SetError(nil)
}

//
// ==== QUERIES ====
//

// History returns the full history, newest insertion first.
func (s *Store) History() []domain.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneHistoryLocked(s.history)
}

// FilteredHistory applies the current filters and sort to the history.
// Date bounds are inclusive; a record with a zero timestamp is excluded
// whenever a bound is set. The sort is stable with a deterministic
// tie-break on record ID (always ascending) so equal-key orderings are
// reproducible.
func (s *Store) FilteredHistory() []domain.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.filters
	out := make([]domain.AnalysisRecord, 0, len(s.history))
	for _, r := range s.history {
		if f.DateFrom != nil && (r.Timestamp.IsZero() || r.Timestamp.Before(*f.DateFrom)) {
			continue
		}
		if f.DateTo != nil && (r.Timestamp.IsZero() || r.Timestamp.After(*f.DateTo)) {
			continue
		}
		if f.ViolationType != "" && f.ViolationType != domain.ViolationTypeAll {
			if !hasViolationType(r, f.ViolationType) {
				continue
			}
		}
		out = append(out, r.Clone())
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := compareRecords(out[i], out[j], f.SortBy)
		if c == 0 {
			return out[i].ID < out[j].ID
		}
		if f.SortOrder == domain.SortDesc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Statistics returns the current aggregate. No recomputation; trusts the
// incrementally maintained invariant.
func (s *Store) Statistics() domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Clone()
}

// AnalysisByID returns the record with the given id.
func (s *Store) AnalysisByID(id domain.AnalysisID) (domain.AnalysisRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.AnalysisRecord{}, false
	}
	return s.history[idx].Clone(), true
}

// AnalysesByType returns all records with the given type, insertion order.
func (s *Store) AnalysesByType(t string) []domain.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AnalysisRecord, 0)
	for _, r := range s.history {
		if r.Type == t {
			out = append(out, r.Clone())
		}
	}
	return out
}

// RecentAnalyses returns the first limit records of the history (most
// recently inserted first). Non-positive limits fall back to the default.
func (s *Store) RecentAnalyses(limit int) []domain.AnalysisRecord {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.history) {
		limit = len(s.history)
	}
	return s.cloneHistoryLocked(s.history[:limit])
}

// ViolationSummary counts violations by type across the whole history.
// Computed fresh on every call, O(total violations).
func (s *Store) ViolationSummary() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, r := range s.history {
		for _, v := range r.Violations {
			out[v.Type]++
		}
	}
	return out
}

// Filters returns the current filter settings.
func (s *Store) Filters() domain.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Clone()
}

// SelectedAnalysis returns the current selection, or nil.
func (s *Store) SelectedAnalysis() *domain.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	sel := s.selected.Clone()
	return &sel
}

// IsLoading returns the UI loading flag.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the current error slot value.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

//
// ==== INTERNALS ====
//

func (s *Store) indexLocked(id domain.AnalysisID) int {
	for i, r := range s.history {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// recalcAverageLocked recomputes AverageConfidence over all positive
// confidence values; 0 when none exist.
func (s *Store) recalcAverageLocked() {
	var sum float64
	var n int
	for _, r := range s.history {
		if r.Confidence > 0 {
			sum += r.Confidence
			n++
		}
	}
	if n == 0 {
		s.stats.AverageConfidence = 0
		return
	}
	s.stats.AverageConfidence = sum / float64(n)
}

func (s *Store) cloneHistoryLocked(in []domain.AnalysisRecord) []domain.AnalysisRecord {
	out := make([]domain.AnalysisRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

func (s *Store) snapshotLocked() *domain.Snapshot {
	snap := &domain.Snapshot{
		Name:       domain.SnapshotName,
		Version:    domain.SnapshotVersion,
		SavedAt:    s.Clock.Now(),
		History:    s.cloneHistoryLocked(s.history),
		Statistics: s.stats.Clone(),
		Filters:    s.filters.Clone(),
	}
	if s.selected != nil {
		sel := s.selected.Clone()
		snap.Selected = &sel
	}
	return snap
}

// persistLocked hands the current snapshot to the persistence worker,
// fire-and-forget. Only the newest snapshot is ever queued; an older
// pending one is dropped. A failed save populates the error slot and the
// PersistFailure hook but never fails or blocks the mutation itself.
func (s *Store) persistLocked() {
	if s.saveCh == nil || s.closed {
		return
	}
	snap := s.snapshotLocked()
	for {
		select {
		case s.saveCh <- snap:
			return
		default:
		}
		// queue full: discard the stale snapshot and retry
		select {
		case <-s.saveCh:
		default:
		}
	}
}

func (s *Store) saveLoop() {
	defer close(s.done)
	for snap := range s.saveCh {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := s.Repo.Save(ctx, snap)
		cancel()
		if err != nil {
			s.mu.Lock()
			s.err = fmt.Errorf("snapshot save: %w", err)
			s.mu.Unlock()
			if s.PersistFailure != nil {
				s.PersistFailure(err)
			}
		}
	}
}

func hasViolationType(r domain.AnalysisRecord, t string) bool {
	for _, v := range r.Violations {
		if v.Type == t {
			return true
		}
	}
	return false
}

// compareRecords orders a against b by the given key: -1, 0 or 1.
// Status comparison is plain byte-wise; Go has no ambient locale.
func compareRecords(a, b domain.AnalysisRecord, key domain.SortKey) int {
	switch key {
	case domain.SortByConfidence:
		switch {
		case a.Confidence < b.Confidence:
			return -1
		case a.Confidence > b.Confidence:
			return 1
		}
		return 0
	case domain.SortByStatus:
		return strings.Compare(a.Status, b.Status)
	default: // date
		return a.Timestamp.Compare(b.Timestamp)
	}
}
