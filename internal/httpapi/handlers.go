package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/pipeline"

	"github.com/go-chi/chi/v5"
)

type speedApplyRequest struct {
	UserID string   `json:"userId"`
	JobIDs []string `json:"jobIds"`
	Wait   bool     `json:"wait"`
}

type workdayApplyRequest struct {
	UserID string `json:"userId"`
	JobID  string `json:"jobId"`
	Wait   bool   `json:"wait"`
}

type startedResponse struct {
	BatchID     string `json:"batchId"`
	Flow        string `json:"flow"`
	ProgressURL string `json:"progressUrl"`
	ResultURL   string `json:"resultUrl"`
	StreamURL   string `json:"streamUrl"`
}

type progressResponse struct {
	pipeline.Progress
	Percent float64 `json:"percent"`
}

func (s *Server) speedApply(w http.ResponseWriter, r *http.Request) {
	var req speedApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewInvalidInputError("malformed JSON body"))
		return
	}
	s.launch(w, r, pipeline.FlowSpeedApply, req.UserID, req.JobIDs, req.Wait)
}

func (s *Server) workdayApply(w http.ResponseWriter, r *http.Request) {
	var req workdayApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewInvalidInputError("malformed JSON body"))
		return
	}
	if req.JobID == "" {
		s.writeError(w, apperrors.NewInvalidInputError("jobId is required"))
		return
	}
	s.launch(w, r, pipeline.FlowWorkday, req.UserID, []string{req.JobID}, req.Wait)
}

// launch either runs the batch inside the request or schedules it and
// answers 202 with the URLs to follow it.
func (s *Server) launch(w http.ResponseWriter, r *http.Request, flow, userID string, jobIDs []string, wait bool) {
	if wait {
		result, err := s.opts.Runner.Run(r.Context(), flow, userID, jobIDs, "")
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	batchID, err := s.opts.Runner.Start(r.Context(), flow, userID, jobIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startedResponse{
		BatchID:     batchID,
		Flow:        flow,
		ProgressURL: "/api/v1/batches/" + batchID + "/progress",
		ResultURL:   "/api/v1/batches/" + batchID + "/result",
		StreamURL:   "/ws/batches/" + batchID,
	})
}

func (s *Server) batchProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.opts.Progress == nil {
		s.writeError(w, apperrors.NewResourceNotFoundError("progress", id))
		return
	}
	p, err := s.opts.Progress.Latest(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if p == nil {
		s.writeError(w, apperrors.NewResourceNotFoundError("progress", id))
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Progress: *p, Percent: p.Percent()})
}

func (s *Server) batchResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var result *pipeline.BatchResult
	var err error
	if s.opts.Progress != nil {
		result, err = s.opts.Progress.Result(r.Context(), id)
		if err != nil {
			s.logger.Warn("result cache read failed", map[string]interface{}{"batchId": id, "error": err})
		}
	}
	if result == nil && s.opts.Archive != nil {
		result, err = s.opts.Archive.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	if result == nil {
		s.writeError(w, apperrors.NewResourceNotFoundError("batch result", id))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stream == nil {
		http.Error(w, "streaming disabled", http.StatusNotImplemented)
		return
	}
	s.opts.Stream.Serve(w, r, chi.URLParam(r, "id"))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.opts.Version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.opts.Checks))
	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}
	writeJSON(w, status, map[string]interface{}{"error": stdErr})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeFlowNotFound, apperrors.ErrCodeApplicantNotFound,
		apperrors.ErrCodeItemNotFound, "RESOURCE_NOT_FOUND":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
