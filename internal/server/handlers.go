package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stxkxs/ttr/internal/aggregate"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
	"github.com/stxkxs/ttr/internal/report"
	"github.com/stxkxs/ttr/internal/state"
)

// --- Helpers ---

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func jsonError(w http.ResponseWriter, status int, msg, code string) {
	jsonResponse(w, status, errorBody{Error: msg, Code: code})
}

// writeError maps a coded error onto an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), ttrErrors.CodeInputUnreadable)
		return
	case ttrErrors.AsCode(err) == ttrErrors.CodeRunNotFound:
		status = http.StatusNotFound
	case ttrErrors.IsInputError(err):
		status = http.StatusBadRequest
	}
	jsonResponse(w, status, errorBody{
		Error: err.Error(),
		Code:  ttrErrors.AsCode(err),
		Hint:  ttrErrors.Suggestion(err),
	})
}

// reportResponse is the body returned for a new or stored report.
type reportResponse struct {
	RunID   string             `json:"run_id,omitempty"`
	Source  string             `json:"source"`
	Rows    []aggregate.Row    `json:"rows"`
	Summary *aggregate.Summary `json:"summary"`
	Stats   aggregate.Stats    `json:"stats"`
}

// runListItem is a run without its rows.
type runListItem struct {
	ID          string             `json:"id"`
	Source      string             `json:"source"`
	Status      string             `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at,omitempty"`
	Rows        int                `json:"rows"`
	Summary     *aggregate.Summary `json:"summary,omitempty"`
	Error       string             `json:"error,omitempty"`
	ErrorCode   string             `json:"error_code,omitempty"`
}

func listItem(run *state.Run) runListItem {
	item := runListItem{
		ID:          run.ID,
		Source:      run.Source,
		Status:      run.Status,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Rows:        run.RowCount(),
		Error:       run.Error,
		ErrorCode:   run.ErrorCode,
	}
	if run.Result != nil {
		item.Summary = run.Result.Summary
	}
	return item
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"name":        s.cfg.Name,
		"history":     s.history != nil,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"sse_clients": s.broker.Clients(),
	})
}

// --- Metrics ---

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := s.metrics.WritePrometheus(w); err != nil {
		s.logger.Warn("Failed to write metrics", "error", err)
	}
}

// --- Reports ---

// uploadBody returns the event log from a multipart "file" field or, for any
// other content type, the raw request body.
func uploadBody(r *http.Request) (string, io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload"
		}
		return name, r.Body, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		return "", nil, ttrErrors.Wrap(ttrErrors.CodeInputUnreadable, "missing upload field \"file\"", err).
			WithSuggestion("Send the event log as multipart field \"file\" or as a text/csv body")
	}
	return header.Filename, file, nil
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Server.MaxUploadMB) << 20
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	source, body, err := uploadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	out, err := s.runner.Run(r.Context(), source, body)
	if err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, reportResponse{
		RunID:   out.RunID,
		Source:  out.Source,
		Rows:    out.Result.Rows,
		Summary: out.Result.Summary,
		Stats:   out.Result.Stats,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	items := []runListItem{}
	if s.history == nil {
		jsonResponse(w, http.StatusOK, items)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}

	runs, err := s.history.List(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, run := range runs {
		items = append(items, listItem(run))
	}
	jsonResponse(w, http.StatusOK, items)
}

// lookupRun resolves the {id} path value, writing the error response itself
// when the run cannot be found.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*state.Run, bool) {
	id := r.PathValue("id")
	if s.history == nil {
		jsonError(w, http.StatusNotFound, "history is disabled", ttrErrors.CodeRunNotFound)
		return nil, false
	}
	run, err := s.history.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return run, true
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, run)
}

func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if run.Result == nil {
		jsonError(w, http.StatusConflict, fmt.Sprintf("run %s has no report (status %s)", run.ShortID(), run.Status), "")
		return
	}

	withSeconds, _ := strconv.ParseBool(r.URL.Query().Get("seconds"))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ttr-"+run.ShortID()+".csv"))
	if err := report.WriteCSV(w, run.Result.Rows, withSeconds); err != nil {
		s.logger.Warn("Failed to write CSV", "run_id", run.ID, "error", err)
	}
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if err := s.history.Delete(run.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- SSE Events ---

func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, "")
}

func (s *Server) handleSSEEventsFiltered(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, r.PathValue("runID"))
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, runID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	client := s.broker.Subscribe(r.Context(), clientID, runID)

	// Send initial connected event.
	data, _ := json.Marshal(map[string]string{"type": "connected", "client_id": clientID})
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()

	for ev := range client.Events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", strings.ReplaceAll(ev.Type, "\n", ""), data)
		flusher.Flush()
	}
}
