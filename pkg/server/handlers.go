package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/gitwatch"
	"branchclock-hq/branchclock/pkg/storage"
	"branchclock-hq/branchclock/pkg/worklog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

type stopResponse struct {
	Stopped bool             `json:"stopped"`
	State   automation.State `json:"state"`
}

type submitRequest struct {
	Description string `json:"description"`
}

type submitResponse struct {
	Result  *worklog.Result  `json:"result"`
	Partial bool             `json:"partial"`
	State   automation.State `json:"state"`
}

type ticketRequest struct {
	Ticket string `json:"ticket"`
}

type settingsRequest struct {
	AutoStart *bool `json:"auto_start"`
	AutoLog   *bool `json:"auto_log"`
}

type settingsResponse struct {
	AutoStart      bool                    `json:"auto_start"`
	AutoLog        bool                    `json:"auto_log"`
	LastBranchInfo *storage.LastBranchInfo `json:"last_branch_info,omitempty"`
}

type repositoriesResponse struct {
	Repositories []gitwatch.BranchInfo `json:"repositories"`
}

type historyResponse struct {
	Entries []storage.JournalEntry `json:"entries"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Controller.State())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Controller.StartTimer(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Controller.State())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	stopped, err := s.opts.Controller.StopTimer(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stopResponse{Stopped: stopped, State: s.opts.Controller.State()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.opts.Controller.SubmitTime(r.Context(), req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Result: res, Partial: res.Partial(), State: s.opts.Controller.State()})
}

func (s *Server) handleSelectTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	key := strings.ToUpper(strings.TrimSpace(req.Ticket))
	if key == "" {
		s.writeError(w, r, &requestError{msg: "ticket is required"})
		return
	}
	if _, err := s.opts.Controller.SelectTicket(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Controller.State())
}

func (s *Server) handleClearTicket(w http.ResponseWriter, r *http.Request) {
	s.opts.Controller.ClearCurrentTicket()
	writeJSON(w, http.StatusOK, s.opts.Controller.State())
}

// handleAuthCheck verifies credentials now. An unreachable tracker that
// leaves automation running still answers with the state.
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	err := s.opts.Controller.CheckAuthentication(r.Context())
	state := s.opts.Controller.State()
	if err != nil && !state.Authenticated {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSettingsResponse(s.opts.Controller.Settings()))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.AutoStart == nil && req.AutoLog == nil {
		s.writeError(w, r, &requestError{msg: "auto_start or auto_log is required"})
		return
	}
	if req.AutoStart != nil {
		s.opts.Controller.SetAutoStart(*req.AutoStart)
	}
	if req.AutoLog != nil {
		s.opts.Controller.SetAutoLog(*req.AutoLog)
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s.opts.Controller.Settings()))
}

func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	resp := repositoriesResponse{Repositories: []gitwatch.BranchInfo{}}
	if s.opts.Repositories != nil {
		if repos := s.opts.Repositories.Repositories(); repos != nil {
			resp.Repositories = repos
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.Journal == nil {
		writeJSON(w, http.StatusOK, historyResponse{Entries: []storage.JournalEntry{}})
		return
	}

	opts := storage.ListOptions{
		WorkspaceID: s.opts.WorkspaceID,
		TicketID:    r.URL.Query().Get("ticket"),
		Limit:       50,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, &requestError{msg: "limit must be a positive integer"})
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, &requestError{msg: "since must be an RFC 3339 timestamp"})
			return
		}
		opts.Since = t
	}

	entries, err := s.opts.Journal.ListEntries(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []storage.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
}

func toSettingsResponse(st storage.Settings) settingsResponse {
	return settingsResponse{AutoStart: st.AutoStart, AutoLog: st.AutoLog, LastBranchInfo: st.LastBranchInfo}
}

// decodeBody decodes a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return &requestError{msg: "request body is required"}
		}
		return &requestError{msg: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
