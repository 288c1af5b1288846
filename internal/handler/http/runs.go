package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"eventscout/internal/domain/entity"
	"eventscout/internal/handler/http/pathutil"
	"eventscout/internal/handler/http/respond"
	"eventscout/internal/repository"
)

// maxRunsPerPage caps the list endpoint's limit parameter.
const maxRunsPerPage = 100

// runResponse is the JSON shape of one discovery run.
type runResponse struct {
	ID           int64      `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	Queries      []string   `json:"queries"`
	PagesCrawled int        `json:"pages_crawled"`
	EventsFound  int        `json:"events_found"`
	Error        string     `json:"error,omitempty"`
}

func toRunResponse(run *entity.DiscoveryRun) runResponse {
	return runResponse{
		ID:           run.ID,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Status:       run.Status,
		Queries:      run.Queries,
		PagesCrawled: run.PagesCrawled,
		EventsFound:  run.EventsFound,
		Error:        run.Error,
	}
}

// RunsHandler serves the discovery run history.
type RunsHandler struct {
	Repo repository.RunRepository
}

// List handles GET /runs. The limit query parameter defaults to 20 and is
// capped at 100.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.SafeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respond.SafeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxRunsPerPage {
		limit = maxRunsPerPage
	}

	runs, err := h.Repo.ListRecent(r.Context(), limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	respond.JSON(w, http.StatusOK, out)
}

// Get handles GET /runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.SafeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	id, err := pathutil.ExtractID(r.URL.Path, "/runs/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid run id"))
		return
	}

	run, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			respond.SafeError(w, http.StatusNotFound, errors.New("run not found"))
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, toRunResponse(run))
}
