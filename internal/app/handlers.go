package app

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"calsched/internal/oncalendar"
	"calsched/internal/scheduler"
)

const (
	defaultPreviewCount = 5
	maxPreviewCount     = 100
)

type createScheduleRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	URL        string `json:"url"`
}

type previewRequest struct {
	Expression string `json:"expression"`
	From       string `json:"from,omitempty"`
	Count      int    `json:"count,omitempty"`
	Direction  string `json:"direction,omitempty"`
}

type previewResponse struct {
	Expression  string   `json:"expression"`
	From        string   `json:"from"`
	Direction   string   `json:"direction"`
	Occurrences []string `json:"occurrences"`
	Exhausted   bool     `json:"exhausted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DB().PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Application) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := scheduler.ValidateExpression(req.Expression); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := a.Scheduler.AddJob(r.Context(), req.Name, req.Expression, req.URL)
	if err != nil {
		a.Logger.Printf("failed to create schedule: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (a *Application) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Scheduler.ListJobs())
}

func (a *Application) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	job, ok := a.Scheduler.GetJob(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *Application) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := a.Scheduler.GetJob(id); !ok {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	if err := a.Scheduler.RemoveJob(r.Context(), id); err != nil {
		a.Logger.Printf("failed to delete schedule %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Application) handleListRuns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := a.Scheduler.GetJob(id); !ok {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := a.Store.ListRuns(r.Context(), id, limit)
	if err != nil {
		a.Logger.Printf("failed to list runs for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []scheduler.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handlePreview computes upcoming (or past) occurrences for an
// expression without creating a job.
func (a *Application) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	count := req.Count
	if count <= 0 {
		count = defaultPreviewCount
	}
	if count > maxPreviewCount {
		count = maxPreviewCount
	}

	from := time.Now()
	if req.From != "" {
		parsed, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		from = parsed
	}

	direction := req.Direction
	if direction == "" {
		direction = "forward"
	}

	var occurrences []string
	var exhausted bool
	switch direction {
	case "forward":
		sched, err := scheduler.ParseSchedule(req.Expression)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cursor := from
		for i := 0; i < count; i++ {
			next, ok := sched.Next(cursor)
			if !ok {
				exhausted = true
				break
			}
			occurrences = append(occurrences, next.Format(time.RFC3339))
			cursor = next
		}
	case "backward":
		if scheduler.IsCron(req.Expression) {
			writeError(w, http.StatusBadRequest, "cron expressions cannot be previewed backward")
			return
		}
		expr, err := oncalendar.ParseTZ(req.Expression)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		it := expr.Backward(from)
		for i := 0; i < count; i++ {
			prev, ok := it.Next()
			if !ok {
				exhausted = true
				break
			}
			occurrences = append(occurrences, prev.Format(time.RFC3339))
		}
	default:
		writeError(w, http.StatusBadRequest, "direction must be forward or backward")
		return
	}

	if occurrences == nil {
		occurrences = []string{}
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Expression:  req.Expression,
		From:        from.Format(time.RFC3339),
		Direction:   direction,
		Occurrences: occurrences,
		Exhausted:   exhausted,
	})
}
