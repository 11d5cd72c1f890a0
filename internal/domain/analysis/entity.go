package analysis

import (
	"time"
)

// ID tipe for AnalysisRecord
type AnalysisID string

// SortKey enum
type SortKey string

const (
	SortByDate       SortKey = "date"
	SortByConfidence SortKey = "confidence"
	SortByStatus     SortKey = "status"
)

// SortOrder enum
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ViolationTypeAll disables the violation-type filter.
const ViolationTypeAll = "all"

// Violation is a single policy violation detected inside an analysis.
// The store only ever reads Type; the remaining fields ride along for callers.
type Violation struct {
	Type        string `json:"type"`
	Severity    string `json:"severity,omitempty"`
	Description string `json:"description,omitempty"`
}

// Aggregate Root: AnalysisRecord
// ID and Timestamp are assigned by the store at insertion and never change.
// Extra is the pass-through extension point for caller-supplied fields the
// store does not inspect.
type AnalysisRecord struct {
	ID         AnalysisID     `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       string         `json:"type,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Status     string         `json:"status,omitempty"`
	Violations []Violation    `json:"violations,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Clone returns a copy that shares no slices or maps with the receiver.
func (r AnalysisRecord) Clone() AnalysisRecord {
	out := r
	if r.Violations != nil {
		out.Violations = make([]Violation, len(r.Violations))
		copy(out.Violations, r.Violations)
	}
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Statistics value object, maintained incrementally by the store.
// AnalysisTypes carries only types whose count is > 0.
type Statistics struct {
	TotalAnalyses      int            `json:"total_analyses"`
	ViolationsDetected int            `json:"violations_detected"`
	AverageConfidence  float64        `json:"average_confidence"`
	AnalysisTypes      map[string]int `json:"analysis_types"`
}

// NewStatistics returns the zero statistics value.
func NewStatistics() Statistics {
	return Statistics{AnalysisTypes: make(map[string]int)}
}

// Clone returns a copy with its own type-count map.
func (s Statistics) Clone() Statistics {
	out := s
	out.AnalysisTypes = make(map[string]int, len(s.AnalysisTypes))
	for k, v := range s.AnalysisTypes {
		out.AnalysisTypes[k] = v
	}
	return out
}

// Filters drive the filtered/sorted history view.
// Date bounds are inclusive; nil means unbounded.
type Filters struct {
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
	ViolationType string     `json:"violation_type"`
	SortBy        SortKey    `json:"sort_by"`
	SortOrder     SortOrder  `json:"sort_order"`
}

// DefaultFilters returns the documented filter defaults.
func DefaultFilters() Filters {
	return Filters{
		ViolationType: ViolationTypeAll,
		SortBy:        SortByDate,
		SortOrder:     SortDesc,
	}
}

// Clone returns a copy with its own date-bound pointers.
func (f Filters) Clone() Filters {
	out := f
	if f.DateFrom != nil {
		t := *f.DateFrom
		out.DateFrom = &t
	}
	if f.DateTo != nil {
		t := *f.DateTo
		out.DateTo = &t
	}
	return out
}

// FilterPatch is a partial Filters update; nil fields are left untouched.
// Clearing the date bounds goes through ResetFilters.
type FilterPatch struct {
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
	ViolationType *string    `json:"violation_type,omitempty"`
	SortBy        *SortKey   `json:"sort_by,omitempty"`
	SortOrder     *SortOrder `json:"sort_order,omitempty"`
}

// RecordPatch is a partial AnalysisRecord update; nil fields are left
// untouched. Extra keys are merged over the existing Extra map.
// ID and Timestamp are not patchable.
type RecordPatch struct {
	Type       *string        `json:"type,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Status     *string        `json:"status,omitempty"`
	Violations *[]Violation   `json:"violations,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}
