package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appanalysis "github.com/arnavt866/Content-Violation-Detection/internal/application/analysis"
	domain "github.com/arnavt866/Content-Violation-Detection/internal/domain/analysis"
	"github.com/arnavt866/Content-Violation-Detection/internal/middleware"
)

var (
	errNotFound   = errors.New("not found")
	errBadRequest = errors.New("bad request")
)

type Router struct {
	store *appanalysis.Store
}

func NewRouter(store *appanalysis.Store) http.Handler {
	r := &Router{store: store}
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyses", r.wrap(r.handleAdd))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Delete("/analyses", r.wrap(r.handleClear))
		rt.Get("/analyses/recent", r.wrap(r.handleRecent))
		rt.Get("/analyses/type/{type}", r.wrap(r.handleByType))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Patch("/analyses/{id}", r.wrap(r.handleUpdate))
		rt.Delete("/analyses/{id}", r.wrap(r.handleRemove))

		rt.Get("/statistics", r.wrap(r.handleStatistics))
		rt.Get("/violations/summary", r.wrap(r.handleViolationSummary))

		rt.Put("/filters", r.wrap(r.handleSetFilters))
		rt.Delete("/filters", r.wrap(r.handleResetFilters))

		rt.Get("/selection", r.wrap(r.handleGetSelection))
		rt.Put("/selection/{id}", r.wrap(r.handleSelect))
		rt.Delete("/selection", r.wrap(r.handleClearSelection))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, errNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, errBadRequest) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/analyses
// Body: a partial AnalysisRecord; id and timestamp are assigned server-side.
func (r *Router) handleAdd(w http.ResponseWriter, req *http.Request) error {
	var body domain.AnalysisRecord
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	body.Type = middleware.SanitizeString(body.Type)
	body.Status = middleware.SanitizeString(body.Status)

	rec := r.store.AddAnalysis(body)
	middleware.IncrementAnalysesAdded()

	return writeJSON(w, http.StatusCreated, rec)
}

// GET /v1/analyses
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.store.FilteredHistory())
}

// GET /v1/analyses/recent?limit=10
func (r *Router) handleRecent(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	limit = middleware.ValidateLimit(limit)
	return writeJSON(w, http.StatusOK, r.store.RecentAnalyses(limit))
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	rec, ok := r.store.AnalysisByID(domain.AnalysisID(id))
	if !ok {
		return errNotFound
	}
	return writeJSON(w, http.StatusOK, rec)
}

// GET /v1/analyses/type/{type}
func (r *Router) handleByType(w http.ResponseWriter, req *http.Request) error {
	t := chi.URLParam(req, "type")
	return writeJSON(w, http.StatusOK, r.store.AnalysesByType(t))
}

// PATCH /v1/analyses/{id}
func (r *Router) handleUpdate(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	var patch domain.RecordPatch
	if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	rec, ok := r.store.UpdateAnalysis(domain.AnalysisID(id), patch)
	if !ok {
		return errNotFound
	}
	middleware.IncrementAnalysesUpdated()
	return writeJSON(w, http.StatusOK, rec)
}

// DELETE /v1/analyses/{id}
// Idempotent: deleting an unknown id still returns 204.
func (r *Router) handleRemove(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if r.store.RemoveAnalysis(domain.AnalysisID(id)) {
		middleware.IncrementAnalysesRemoved()
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DELETE /v1/analyses
func (r *Router) handleClear(w http.ResponseWriter, req *http.Request) error {
	r.store.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/statistics
func (r *Router) handleStatistics(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.store.Statistics())
}

// GET /v1/violations/summary
func (r *Router) handleViolationSummary(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.store.ViolationSummary())
}

// PUT /v1/filters
// Body: a partial Filters value; absent fields are left untouched.
func (r *Router) handleSetFilters(w http.ResponseWriter, req *http.Request) error {
	var patch domain.FilterPatch
	if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	if patch.SortBy != nil {
		if err := middleware.ValidateSortKey(string(*patch.SortBy)); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if patch.SortOrder != nil {
		if err := middleware.ValidateSortOrder(string(*patch.SortOrder)); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if patch.ViolationType != nil {
		if err := middleware.ValidateViolationType(*patch.ViolationType); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}

	r.store.SetFilters(patch)
	return writeJSON(w, http.StatusOK, r.store.Filters())
}

// DELETE /v1/filters
func (r *Router) handleResetFilters(w http.ResponseWriter, req *http.Request) error {
	r.store.ResetFilters()
	return writeJSON(w, http.StatusOK, r.store.Filters())
}

// GET /v1/selection
func (r *Router) handleGetSelection(w http.ResponseWriter, req *http.Request) error {
	sel := r.store.SelectedAnalysis()
	if sel == nil {
		return errNotFound
	}
	return writeJSON(w, http.StatusOK, sel)
}

// PUT /v1/selection/{id}
func (r *Router) handleSelect(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	rec, ok := r.store.AnalysisByID(domain.AnalysisID(id))
	if !ok {
		return errNotFound
	}
	r.store.SetSelectedAnalysis(&rec)
	return writeJSON(w, http.StatusOK, rec)
}

// DELETE /v1/selection
func (r *Router) handleClearSelection(w http.ResponseWriter, req *http.Request) error {
	r.store.ClearSelectedAnalysis()
	w.WriteHeader(http.StatusNoContent)
	return nil
}
