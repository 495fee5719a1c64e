package web

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/taxledger/recon/internal/importer"
	"github.com/taxledger/recon/internal/logging"
	"github.com/taxledger/recon/internal/recon"
	"github.com/taxledger/recon/internal/web/middleware"
)

// maxAuditLogLimit caps how many audit records one request may fetch.
const maxAuditLogLimit = 500

// writeOutcome maps an orchestrator outcome to an HTTP response.
func writeOutcome(w http.ResponseWriter, out recon.Outcome) {
	status := http.StatusOK
	switch out.Status {
	case recon.StatusFailed:
		status = http.StatusUnprocessableEntity
	case recon.StatusBlocked:
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(out)
}

// --- Authentication ---

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	token, err := s.sessions.Login(clientIP(r.RemoteAddr), req.Password)
	switch {
	case errors.Is(err, ErrLockedOut):
		s.respondError(w, r, err, http.StatusTooManyRequests)
		return
	case err != nil:
		s.respondError(w, r, err, http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.Auth.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, loginResponse{Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(middleware.TokenFromRequest(r))
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- Import ---

type importResponse struct {
	recon.Outcome
	SourceRows  int `json:"sourceRows"`
	SkippedRows int `json:"skippedRows"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.Import.MaxFileSize); err != nil {
		s.respondError(w, r, err, http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	result, err := importer.ImportFile(header.Filename, data)
	if err != nil {
		s.respondError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	out := s.engine.Import(r.Context(), result.Records)
	logger.Info("ledger imported",
		"filename", header.Filename,
		"source_rows", result.SourceRows,
		"skipped_rows", result.SkippedRows,
		"status", out.Status,
	)

	resp := importResponse{Outcome: out, SourceRows: result.SourceRows, SkippedRows: result.SkippedRows}
	status := http.StatusOK
	if out.Status == recon.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// --- Ledger state ---

type tableResponse struct {
	Headers []string    `json:"headers"`
	Rows    [][]string  `json:"rows"`
	Stats   recon.Stats `json:"stats"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	records := s.engine.Records()
	resp := tableResponse{Stats: s.engine.Stats()}
	if len(records) > 0 {
		resp.Headers = records[0]
		resp.Rows = records[1:]
	}
	writeJSON(w, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Stats())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records := s.engine.Records()
	if len(records) == 0 {
		s.respondError(w, r, errors.New("empty table: nothing to export"), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		logging.FromContext(r.Context()).Error("csv export failed", "error", err)
	}
}

// --- Offset detection ---

func (s *Server) handleDetectOffsets(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.engine.DetectOffsets(r.Context()))
}

func (s *Server) handleRemovedRows(w http.ResponseWriter, r *http.Request) {
	removed := s.engine.RemovedRows()
	writeJSON(w, map[string]interface{}{
		"count":   len(removed),
		"removed": removed,
	})
}

// --- Debit family linkage ---

func (s *Server) handleAnalyzeLinkage(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.engine.AnalyzeLinkage())
}

func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	families := s.engine.Families()
	writeJSON(w, map[string]interface{}{
		"count":    len(families),
		"families": families,
	})
}

type toggleRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleToggleFamily(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	writeOutcome(w, s.engine.ToggleFamilySelection(req.Key))
}

func (s *Server) handleRemoveSelected(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.engine.RemoveSelected(r.Context()))
}

// --- Staged removals ---

func (s *Server) handleApplyPending(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.engine.ApplyPending(r.Context()))
}

func (s *Server) handleCancelPending(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.engine.CancelPending())
}

// --- History ---

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.engine.UndoLastRemoval(r.Context()))
}

func (s *Server) handleRestoreAll(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.engine.RestoreAll(r.Context()))
}

// --- Settings ---

type settingsResponse struct {
	ReviewMode   bool `json:"reviewMode"`
	AutoUpdate   bool `json:"autoUpdate"`
	PendingCount int  `json:"pendingCount"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, settingsResponse{
		ReviewMode:   s.engine.ReviewMode(),
		AutoUpdate:   s.engine.AutoUpdate(),
		PendingCount: s.engine.PendingCount(),
	})
}

type settingsRequest struct {
	ReviewMode *bool `json:"reviewMode"`
	AutoUpdate *bool `json:"autoUpdate"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.ReviewMode != nil {
		s.engine.SetReviewMode(*req.ReviewMode)
	}
	if req.AutoUpdate != nil {
		s.engine.SetAutoUpdate(*req.AutoUpdate)
	}
	s.handleGetSettings(w, r)
}

// --- Audit trail ---

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, map[string]interface{}{"operations": []struct{}{}})
		return
	}

	limit := parseIntParam(r, "limit", 50)
	if limit > maxAuditLogLimit {
		limit = maxAuditLogLimit
	}

	ops, err := s.audit.RecentOperations(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"operations": ops})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
