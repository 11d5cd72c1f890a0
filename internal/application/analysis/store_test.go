package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/arnavt866/Content-Violation-Detection/internal/domain/analysis"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore() (*Store, *fakeClock) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(nil, clk), clk
}

func checkInvariants(t *testing.T, s *Store) {
	t.Helper()
	history := s.History()
	stats := s.Statistics()

	assert.Equal(t, len(history), stats.TotalAnalyses, "total_analyses must equal history length")

	wantViolations := 0
	types := map[string]int{}
	for _, r := range history {
		wantViolations += len(r.Violations)
		if r.Type != "" {
			types[r.Type]++
		}
	}
	assert.Equal(t, wantViolations, stats.ViolationsDetected, "violations_detected must equal violation sum")
	assert.Equal(t, types, stats.AnalysisTypes, "analysis_types must match per-type counts")
}

func TestAddAnalysis(t *testing.T) {
	t.Run("assigns id and timestamp", func(t *testing.T) {
		s, clk := newTestStore()

		rec := s.AddAnalysis(domain.AnalysisRecord{Type: "toxicity"})
		require.NotEmpty(t, rec.ID)
		assert.Equal(t, clk.now, rec.Timestamp)

		got, ok := s.AnalysisByID(rec.ID)
		require.True(t, ok)
		assert.Equal(t, rec, got)
	})

	t.Run("overwrites caller-supplied id and timestamp", func(t *testing.T) {
		s, clk := newTestStore()

		rec := s.AddAnalysis(domain.AnalysisRecord{
			ID:        "client-chosen",
			Timestamp: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		assert.NotEqual(t, domain.AnalysisID("client-chosen"), rec.ID)
		assert.Equal(t, clk.now, rec.Timestamp)
	})

	t.Run("prepends newest first", func(t *testing.T) {
		s, clk := newTestStore()

		first := s.AddAnalysis(domain.AnalysisRecord{Status: "pass"})
		clk.now = clk.now.Add(time.Minute)
		second := s.AddAnalysis(domain.AnalysisRecord{Status: "fail"})

		history := s.History()
		require.Len(t, history, 2)
		assert.Equal(t, second.ID, history[0].ID)
		assert.Equal(t, first.ID, history[1].ID)
	})

	t.Run("maintains statistics", func(t *testing.T) {
		s, _ := newTestStore()

		s.AddAnalysis(domain.AnalysisRecord{
			Type:       "toxicity",
			Confidence: 0.8,
			Violations: []domain.Violation{{Type: "hate-speech"}, {Type: "profanity"}},
		})
		s.AddAnalysis(domain.AnalysisRecord{Type: "toxicity"})
		s.AddAnalysis(domain.AnalysisRecord{Type: "spam", Confidence: 0.4})

		stats := s.Statistics()
		assert.Equal(t, 3, stats.TotalAnalyses)
		assert.Equal(t, 2, stats.ViolationsDetected)
		assert.InDelta(t, 0.6, stats.AverageConfidence, 1e-9)
		assert.Equal(t, map[string]int{"toxicity": 2, "spam": 1}, stats.AnalysisTypes)
		checkInvariants(t, s)
	})

	t.Run("non-positive confidence is treated as absent", func(t *testing.T) {
		s, _ := newTestStore()

		s.AddAnalysis(domain.AnalysisRecord{Confidence: 0.5})
		s.AddAnalysis(domain.AnalysisRecord{Confidence: 0})
		s.AddAnalysis(domain.AnalysisRecord{Confidence: -1})

		assert.InDelta(t, 0.5, s.Statistics().AverageConfidence, 1e-9)
	})
}

func TestRemoveAnalysis(t *testing.T) {
	t.Run("removes record and updates statistics", func(t *testing.T) {
		s, _ := newTestStore()

		keep := s.AddAnalysis(domain.AnalysisRecord{Type: "spam", Confidence: 0.2})
		gone := s.AddAnalysis(domain.AnalysisRecord{
			Type:       "toxicity",
			Confidence: 0.9,
			Violations: []domain.Violation{{Type: "hate-speech"}},
		})

		require.True(t, s.RemoveAnalysis(gone.ID))

		history := s.History()
		require.Len(t, history, 1)
		assert.Equal(t, keep.ID, history[0].ID)

		stats := s.Statistics()
		assert.Equal(t, 1, stats.TotalAnalyses)
		assert.Equal(t, 0, stats.ViolationsDetected)
		assert.InDelta(t, 0.2, stats.AverageConfidence, 1e-9)
		assert.Equal(t, map[string]int{"spam": 1}, stats.AnalysisTypes)
		checkInvariants(t, s)
	})

	t.Run("unknown id leaves state unchanged", func(t *testing.T) {
		s, _ := newTestStore()
		rec := s.AddAnalysis(domain.AnalysisRecord{Type: "spam", Confidence: 0.7})
		s.SetSelectedAnalysis(&rec)

		beforeHistory := s.History()
		beforeStats := s.Statistics()
		beforeFilters := s.Filters()
		beforeSelected := s.SelectedAnalysis()

		assert.False(t, s.RemoveAnalysis("no-such-id"))

		assert.Equal(t, beforeHistory, s.History())
		assert.Equal(t, beforeStats, s.Statistics())
		assert.Equal(t, beforeFilters, s.Filters())
		assert.Equal(t, beforeSelected, s.SelectedAnalysis())
	})

	t.Run("average becomes zero when no positive confidences remain", func(t *testing.T) {
		s, _ := newTestStore()
		rec := s.AddAnalysis(domain.AnalysisRecord{Confidence: 0.9})
		s.AddAnalysis(domain.AnalysisRecord{Confidence: 0})

		s.RemoveAnalysis(rec.ID)
		assert.Zero(t, s.Statistics().AverageConfidence)
	})

	t.Run("clears matching selection", func(t *testing.T) {
		s, _ := newTestStore()
		rec := s.AddAnalysis(domain.AnalysisRecord{Type: "spam"})
		s.SetSelectedAnalysis(&rec)

		s.RemoveAnalysis(rec.ID)
		assert.Nil(t, s.SelectedAnalysis())
	})

	t.Run("keeps unrelated selection", func(t *testing.T) {
		s, _ := newTestStore()
		selectedRec := s.AddAnalysis(domain.AnalysisRecord{Type: "spam"})
		other := s.AddAnalysis(domain.AnalysisRecord{Type: "toxicity"})
		s.SetSelectedAnalysis(&selectedRec)

		s.RemoveAnalysis(other.ID)
		sel := s.SelectedAnalysis()
		require.NotNil(t, sel)
		assert.Equal(t, selectedRec.ID, sel.ID)
	})
}

func TestUpdateAnalysis(t *testing.T) {
	strPtr := func(v string) *string { return &v }
	floatPtr := func(v float64) *float64 { return &v }

	t.Run("merges fields, id and timestamp untouched", func(t *testing.T) {
		s, _ := newTestStore()
		rec := s.AddAnalysis(domain.AnalysisRecord{Type: "spam", Status: "pending", Confidence: 0.5})

		updated, ok := s.UpdateAnalysis(rec.ID, domain.RecordPatch{
			Status: strPtr("reviewed"),
			Extra:  map[string]any{"reviewer": "alice"},
		})
		require.True(t, ok)
		assert.Equal(t, rec.ID, updated.ID)
		assert.Equal(t, rec.Timestamp, updated.Timestamp)
		assert.Equal(t, "reviewed", updated.Status)
		assert.Equal(t, "spam", updated.Type)
		assert.InDelta(t, 0.5, updated.Confidence, 1e-9)
		assert.Equal(t, map[string]any{"reviewer": "alice"}, updated.Extra)
	})

	t.Run("unknown id leaves state unchanged", func(t *testing.T) {
		s, _ := newTestStore()
		s.AddAnalysis(domain.AnalysisRecord{Type: "spam", Confidence: 0.5})

		beforeHistory := s.History()
		beforeStats := s.Statistics()

		_, ok := s.UpdateAnalysis("no-such-id", domain.RecordPatch{Status: strPtr("x")})
		assert.False(t, ok)
		assert.Equal(t, beforeHistory, s.History())
		assert.Equal(t, beforeStats, s.Statistics())
	})

	t.Run("confidence change recomputes the average", func(t *testing.T) {
		s, _ := newTestStore()
		rec := s.AddAnalysis(domain.AnalysisRecord{Confidence: 0.5})
		s.AddAnalysis(domain.AnalysisRecord{Confidence: 0.9})

		_, ok := s.UpdateAnalysis(rec.ID, domain.RecordPatch{Confidence: floatPtr(0.3)})
		require.True(t, ok)
		assert.InDelta(t, 0.6, s.Statistics().AverageConfidence, 1e-9)

		// drop below the positive threshold: only the other record counts
		_, ok = s.UpdateAnalysis(rec.ID, domain.RecordPatch{Confidence: floatPtr(0)})
		require.True(t, ok)
		assert.InDelta(t, 0.9, s.Statistics().AverageConfidence, 1e-9)
	})

	t.Run("type and violations changes do not touch their aggregates", func(t *testing.T) {
		// Updates deliberately leave totals, violation counts and type
		// buckets alone; remove + re-add is the path for those changes.
		s, _ := newTestStore()
		rec := s.AddAnalysis(domain.AnalysisRecord{
			Type:       "spam",
			Violations: []domain.Violation{{Type: "phishing"}},
		})

		violations := []domain.Violation{{Type: "phishing"}, {Type: "scam"}, {Type: "scam"}}
		updated, ok := s.UpdateAnalysis(rec.ID, domain.RecordPatch{
			Type:       strPtr("toxicity"),
			Violations: &violations,
		})
		require.True(t, ok)
		assert.Equal(t, "toxicity", updated.Type)
		assert.Len(t, updated.Violations, 3)

		stats := s.Statistics()
		assert.Equal(t, 1, stats.ViolationsDetected)
		assert.Equal(t, map[string]int{"spam": 1}, stats.AnalysisTypes)
	})

	t.Run("refreshes matching selection", func(t *testing.T) {
		s, _ := newTestStore()
		rec := s.AddAnalysis(domain.AnalysisRecord{Confidence: 0.5})
		s.SetSelectedAnalysis(&rec)

		updated, ok := s.UpdateAnalysis(rec.ID, domain.RecordPatch{Confidence: floatPtr(0.8)})
		require.True(t, ok)

		sel := s.SelectedAnalysis()
		require.NotNil(t, sel)
		assert.Equal(t, updated, *sel)
	})
}

func TestClearHistory(t *testing.T) {
	s, _ := newTestStore()
	rec := s.AddAnalysis(domain.AnalysisRecord{
		Type:       "spam",
		Confidence: 0.7,
		Violations: []domain.Violation{{Type: "phishing"}},
	})
	s.SetSelectedAnalysis(&rec)
	vt := "phishing"
	s.SetFilters(domain.FilterPatch{ViolationType: &vt})

	s.ClearHistory()

	assert.Empty(t, s.History())
	assert.Equal(t, domain.NewStatistics(), s.Statistics())
	assert.Nil(t, s.SelectedAnalysis())
	// filters survive a clear
	assert.Equal(t, "phishing", s.Filters().ViolationType)
	checkInvariants(t, s)
}

func TestFilterActions(t *testing.T) {
	t.Run("set merges partial patches", func(t *testing.T) {
		s, _ := newTestStore()

		sortBy := domain.SortByConfidence
		s.SetFilters(domain.FilterPatch{SortBy: &sortBy})

		f := s.Filters()
		assert.Equal(t, domain.SortByConfidence, f.SortBy)
		// untouched fields keep their defaults
		assert.Equal(t, domain.SortDesc, f.SortOrder)
		assert.Equal(t, domain.ViolationTypeAll, f.ViolationType)
	})

	t.Run("reset restores defaults", func(t *testing.T) {
		s, clk := newTestStore()

		from := clk.now.Add(-time.Hour)
		vt := "phishing"
		order := domain.SortAsc
		s.SetFilters(domain.FilterPatch{DateFrom: &from, ViolationType: &vt, SortOrder: &order})

		s.ResetFilters()
		assert.Equal(t, domain.DefaultFilters(), s.Filters())
	})
}

func TestFilteredHistory(t *testing.T) {
	// Two-record scenario: rec1 at T1 (confidence 0.9, status pass),
	// rec2 at T2 > T1 (confidence 0.4, status fail).
	setup := func(t *testing.T) (*Store, *fakeClock, domain.AnalysisRecord, domain.AnalysisRecord) {
		t.Helper()
		s, clk := newTestStore()
		rec1 := s.AddAnalysis(domain.AnalysisRecord{Confidence: 0.9, Status: "pass"})
		clk.now = clk.now.Add(time.Hour)
		rec2 := s.AddAnalysis(domain.AnalysisRecord{Confidence: 0.4, Status: "fail"})
		return s, clk, rec1, rec2
	}

	ids := func(recs []domain.AnalysisRecord) []domain.AnalysisID {
		out := make([]domain.AnalysisID, len(recs))
		for i, r := range recs {
			out[i] = r.ID
		}
		return out
	}

	setSort := func(s *Store, key domain.SortKey, order domain.SortOrder) {
		s.SetFilters(domain.FilterPatch{SortBy: &key, SortOrder: &order})
	}

	t.Run("date ascending", func(t *testing.T) {
		s, _, rec1, rec2 := setup(t)
		setSort(s, domain.SortByDate, domain.SortAsc)
		assert.Equal(t, []domain.AnalysisID{rec1.ID, rec2.ID}, ids(s.FilteredHistory()))
	})

	t.Run("date descending is the default", func(t *testing.T) {
		s, _, rec1, rec2 := setup(t)
		assert.Equal(t, []domain.AnalysisID{rec2.ID, rec1.ID}, ids(s.FilteredHistory()))
	})

	t.Run("confidence descending", func(t *testing.T) {
		s, _, rec1, rec2 := setup(t)
		setSort(s, domain.SortByConfidence, domain.SortDesc)
		assert.Equal(t, []domain.AnalysisID{rec1.ID, rec2.ID}, ids(s.FilteredHistory()))
	})

	t.Run("status ascending", func(t *testing.T) {
		s, _, rec1, rec2 := setup(t)
		setSort(s, domain.SortByStatus, domain.SortAsc)
		// "fail" < "pass"
		assert.Equal(t, []domain.AnalysisID{rec2.ID, rec1.ID}, ids(s.FilteredHistory()))
	})

	t.Run("equal keys tie-break on id ascending", func(t *testing.T) {
		s, _ := newTestStore()
		a := s.AddAnalysis(domain.AnalysisRecord{Status: "pass"})
		b := s.AddAnalysis(domain.AnalysisRecord{Status: "pass"})
		lo, hi := a.ID, b.ID
		if hi < lo {
			lo, hi = hi, lo
		}

		setSort(s, domain.SortByStatus, domain.SortAsc)
		assert.Equal(t, []domain.AnalysisID{lo, hi}, ids(s.FilteredHistory()))

		// direction reversal does not disturb the tie-break
		setSort(s, domain.SortByStatus, domain.SortDesc)
		assert.Equal(t, []domain.AnalysisID{lo, hi}, ids(s.FilteredHistory()))
	})

	t.Run("inclusive date bounds", func(t *testing.T) {
		s, _, rec1, _ := setup(t)
		from := rec1.Timestamp
		to := rec1.Timestamp
		s.SetFilters(domain.FilterPatch{DateFrom: &from, DateTo: &to})

		got := s.FilteredHistory()
		require.Len(t, got, 1)
		assert.Equal(t, rec1.ID, got[0].ID)
	})

	t.Run("violation type filter", func(t *testing.T) {
		s, _ := newTestStore()
		match := s.AddAnalysis(domain.AnalysisRecord{
			Violations: []domain.Violation{{Type: "phishing"}, {Type: "scam"}},
		})
		s.AddAnalysis(domain.AnalysisRecord{Violations: []domain.Violation{{Type: "scam"}}})
		s.AddAnalysis(domain.AnalysisRecord{}) // no violations: excluded

		vt := "phishing"
		s.SetFilters(domain.FilterPatch{ViolationType: &vt})

		got := s.FilteredHistory()
		require.Len(t, got, 1)
		assert.Equal(t, match.ID, got[0].ID)
	})

	t.Run("all keeps records without violations", func(t *testing.T) {
		s, _ := newTestStore()
		s.AddAnalysis(domain.AnalysisRecord{})
		s.AddAnalysis(domain.AnalysisRecord{Violations: []domain.Violation{{Type: "scam"}}})

		assert.Len(t, s.FilteredHistory(), 2)
	})

	t.Run("does not mutate state", func(t *testing.T) {
		s, _, _, _ := setup(t)
		before := s.History()
		setSort(s, domain.SortByConfidence, domain.SortAsc)
		s.FilteredHistory()
		assert.Equal(t, before, s.History())
	})
}

func TestGetters(t *testing.T) {
	t.Run("analyses by type", func(t *testing.T) {
		s, _ := newTestStore()
		spam1 := s.AddAnalysis(domain.AnalysisRecord{Type: "spam"})
		s.AddAnalysis(domain.AnalysisRecord{Type: "toxicity"})
		spam2 := s.AddAnalysis(domain.AnalysisRecord{Type: "spam"})

		got := s.AnalysesByType("spam")
		require.Len(t, got, 2)
		assert.Equal(t, spam2.ID, got[0].ID)
		assert.Equal(t, spam1.ID, got[1].ID)
		assert.Empty(t, s.AnalysesByType("nope"))
	})

	t.Run("recent analyses honors limit and default", func(t *testing.T) {
		s, _ := newTestStore()
		var last domain.AnalysisRecord
		for i := 0; i < 12; i++ {
			last = s.AddAnalysis(domain.AnalysisRecord{})
		}

		assert.Len(t, s.RecentAnalyses(0), DefaultRecentLimit)
		got := s.RecentAnalyses(2)
		require.Len(t, got, 2)
		assert.Equal(t, last.ID, got[0].ID)
		assert.Len(t, s.RecentAnalyses(50), 12)
	})

	t.Run("violation summary scans the whole history", func(t *testing.T) {
		s, _ := newTestStore()
		s.AddAnalysis(domain.AnalysisRecord{
			Violations: []domain.Violation{{Type: "phishing"}, {Type: "scam"}},
		})
		s.AddAnalysis(domain.AnalysisRecord{Violations: []domain.Violation{{Type: "scam"}}})
		s.AddAnalysis(domain.AnalysisRecord{})

		assert.Equal(t, map[string]int{"phishing": 1, "scam": 2}, s.ViolationSummary())
	})

	t.Run("history getter returns isolated copies", func(t *testing.T) {
		s, _ := newTestStore()
		s.AddAnalysis(domain.AnalysisRecord{Violations: []domain.Violation{{Type: "scam"}}})

		got := s.History()
		got[0].Violations[0].Type = "tampered"

		assert.Equal(t, "scam", s.History()[0].Violations[0].Type)
	})
}

func TestUIFlags(t *testing.T) {
	s, _ := newTestStore()

	assert.False(t, s.IsLoading())
	s.SetLoading(true)
	assert.True(t, s.IsLoading())
	s.SetLoading(false)
	assert.False(t, s.IsLoading())

	require.NoError(t, s.Err())
	s.SetError(assert.AnError)
	assert.Equal(t, assert.AnError, s.Err())
	s.ClearError()
	assert.NoError(t, s.Err())
}
