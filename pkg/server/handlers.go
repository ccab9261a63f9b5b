package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"faultline-hq/faultline/pkg/history"
	"faultline-hq/faultline/pkg/inject"
	"faultline-hq/faultline/pkg/plan"
)

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

// removeFaultRequest is the body for DELETE /v1/faults.
type removeFaultRequest struct {
	Class   string `json:"class"`
	Pattern string `json:"pattern"`
}

// unblockRequest is the body for POST /v1/unblock.
type unblockRequest struct {
	Class   string `json:"class"`
	Pattern string `json:"pattern"`
	Error   string `json:"error,omitempty"`
}

// unblockAllRequest is the body for POST /v1/unblock-all.
type unblockAllRequest struct {
	Error string `json:"error,omitempty"`
}

// unblockResponse reports how many blocked calls were released.
type unblockResponse struct {
	Unblocked int `json:"unblocked"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleFaults registers a fault (POST) or removes one (DELETE).
func (s *Server) handleFaults(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.registerFault(w, r)
	case http.MethodDelete:
		s.removeFault(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) registerFault(w http.ResponseWriter, r *http.Request) {
	var spec plan.FaultSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := spec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := spec.Apply(s.injector); err != nil {
		if errors.Is(err, inject.ErrDisabled) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("fault registered via API",
		"class", spec.Class,
		"pattern", spec.Pattern,
		"behavior", string(spec.Behavior),
	)

	writeJSON(w, http.StatusCreated, spec)
}

func (s *Server) removeFault(w http.ResponseWriter, r *http.Request) {
	var req removeFaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Class == "" || req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "class and pattern are required")
		return
	}

	if !s.injector.RemoveFault(req.Class, req.Pattern) {
		writeError(w, http.StatusNotFound, "no matching fault")
		return
	}

	s.logger.Info("fault removed via API", "class", req.Class, "pattern", req.Pattern)

	w.WriteHeader(http.StatusNoContent)
}

// handleBlocked lists blocked calls for a key class.
func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	class := r.URL.Query().Get("class")
	if class == "" {
		writeError(w, http.StatusBadRequest, "class query parameter is required")
		return
	}

	blocked := s.injector.ListBlocked(class)
	if blocked == nil {
		blocked = []inject.BlockedCall{}
	}

	writeJSON(w, http.StatusOK, blocked)
}

// handleUnblock releases blocked calls matching a pattern.
func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req unblockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Class == "" || req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "class and pattern are required")
		return
	}

	var (
		n   int
		err error
	)
	if req.Error != "" {
		n, err = s.injector.UnblockWithError(req.Class, req.Pattern, errors.New(req.Error))
	} else {
		n, err = s.injector.Unblock(req.Class, req.Pattern)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, unblockResponse{Unblocked: n})
}

// handleUnblockAll releases every blocked call.
func (s *Server) handleUnblockAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req unblockAllRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	var n int
	if req.Error != "" {
		n = s.injector.UnblockAllWithError(errors.New(req.Error))
	} else {
		n = s.injector.UnblockAll()
	}

	writeJSON(w, http.StatusOK, unblockResponse{Unblocked: n})
}

// handleEvents lists recorded fault events, newest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	class := r.URL.Query().Get("class")

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := s.store.List(r.Context(), class, limit)
	if err != nil {
		s.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []*history.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"injection_enabled": s.injector.Enabled(),
	})
}
