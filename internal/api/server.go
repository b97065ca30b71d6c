package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/appeals"
	"github.com/Lora-Technologies/LoraGuard/internal/db"
	"github.com/Lora-Technologies/LoraGuard/internal/errors"
	"github.com/Lora-Technologies/LoraGuard/internal/guard"
	"github.com/Lora-Technologies/LoraGuard/internal/punishments"
	"github.com/Lora-Technologies/LoraGuard/internal/reports"
)

type ledgerReader interface {
	GetLedger(ctx context.Context, playerUUID string) (*db.Ledger, error)
	GetPlayerViolations(ctx context.Context, playerUUID string, limit int) ([]*db.Violation, error)
}

// Server is the integration surface for the game server: sessions,
// chat messages, appeals, and reports come in over plain JSON.
type Server struct {
	httpServer *http.Server
	pipeline   *guard.Service
	punisher   *punishments.Manager
	appeals    *appeals.Service
	reports    *reports.Service
	ledger     ledgerReader
	logger     *log.Entry
}

func NewServer(addr string, pipeline *guard.Service, punisher *punishments.Manager, appealService *appeals.Service, reportService *reports.Service, ledger ledgerReader) *Server {
	s := &Server{
		pipeline: pipeline,
		punisher: punisher,
		appeals:  appealService,
		reports:  reportService,
		ledger:   ledger,
		logger:   log.WithField("object", "APIServer"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", s.handleJoin)
	mux.HandleFunc("DELETE /v1/sessions/{uuid}", s.handleLeave)
	mux.HandleFunc("POST /v1/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/players/{uuid}", s.handlePlayerStatus)
	mux.HandleFunc("POST /v1/appeals", s.handleCreateAppeal)
	mux.HandleFunc("GET /v1/appeals/pending", s.handlePendingAppeals)
	mux.HandleFunc("POST /v1/appeals/{id}/approve", s.handleResolveAppeal(true))
	mux.HandleFunc("POST /v1/appeals/{id}/deny", s.handleResolveAppeal(false))
	mux.HandleFunc("POST /v1/reports", s.handleCreateReport)
	mux.HandleFunc("GET /v1/reports/pending", s.handlePendingReports)
	mux.HandleFunc("POST /v1/reports/{id}/resolve", s.handleResolveReport)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start(_ context.Context) error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithField("error", err.Error()).Error("api server stopped")
		}
	}()
	s.logger.WithField("addr", s.httpServer.Addr).Info("api server listening")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type playerPayload struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func (p playerPayload) toPlayer() punishments.Player {
	return punishments.Player{UUID: p.UUID, Name: p.Name}
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var payload playerPayload
	if !decode(w, r, &payload) {
		return
	}
	if payload.UUID == "" {
		writeError(w, errors.ErrInvalidInput)
		return
	}

	banned, err := s.punisher.HasActiveBan(r.Context(), payload.UUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if banned {
		writeJSON(w, http.StatusForbidden, map[string]any{"allowed": false, "reason": "banned"})
		return
	}

	s.pipeline.PlayerJoined(payload.toPlayer())
	writeJSON(w, http.StatusOK, map[string]any{"allowed": true})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.pipeline.PlayerLeft(r.PathValue("uuid"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		playerPayload
		Text string `json:"text"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if payload.UUID == "" || payload.Text == "" {
		writeError(w, errors.ErrInvalidInput)
		return
	}

	decision := s.pipeline.ProcessMessage(r.Context(), payload.toPlayer(), payload.Text)
	writeJSON(w, http.StatusOK, map[string]any{
		"allowed": decision.Allowed,
		"reason":  decision.Reason,
		"text":    decision.Text,
		"detail":  decision.Detail,
	})
}

func (s *Server) handlePlayerStatus(w http.ResponseWriter, r *http.Request) {
	playerUUID := r.PathValue("uuid")

	banned, err := s.punisher.HasActiveBan(r.Context(), playerUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	ledger, err := s.ledger.GetLedger(r.Context(), playerUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	violations, err := s.ledger.GetPlayerViolations(r.Context(), playerUUID, 10)
	if err != nil {
		writeError(w, err)
		return
	}

	status := map[string]any{
		"muted":      s.punisher.IsMuted(playerUUID),
		"banned":     banned,
		"violations": violations,
	}
	if s.punisher.IsMuted(playerUUID) {
		status["mute_remaining"] = s.punisher.MuteRemaining(playerUUID)
	}
	if ledger != nil {
		status["points"] = ledger.ViolationPoints
		status["total_violations"] = ledger.TotalViolations
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCreateAppeal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		playerPayload
		PunishmentType string `json:"punishment_type"`
		Reason         string `json:"reason"`
	}
	if !decode(w, r, &payload) {
		return
	}
	kind, err := punishments.ParseType(payload.PunishmentType)
	if err != nil {
		writeError(w, errors.ErrInvalidInput)
		return
	}

	appeal, err := s.appeals.Create(r.Context(), payload.toPlayer(), kind, payload.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appeal)
}

func (s *Server) handlePendingAppeals(w http.ResponseWriter, r *http.Request) {
	pending, err := s.appeals.Pending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleResolveAppeal(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appealID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, errors.ErrInvalidInput)
			return
		}
		var payload struct {
			Reviewer string `json:"reviewer"`
			Note     string `json:"note"`
		}
		if !decode(w, r, &payload) {
			return
		}

		if approve {
			err = s.appeals.Approve(r.Context(), appealID, payload.Reviewer, payload.Note)
		} else {
			err = s.appeals.Deny(r.Context(), appealID, payload.Reviewer, payload.Note)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reporter playerPayload `json:"reporter"`
		Reported playerPayload `json:"reported"`
		Reason   string        `json:"reason"`
		Message  *string       `json:"message"`
	}
	if !decode(w, r, &payload) {
		return
	}

	id, err := s.reports.Create(r.Context(), payload.Reporter.toPlayer(), payload.Reported.toPlayer(), payload.Reason, payload.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handlePendingReports(w http.ResponseWriter, r *http.Request) {
	pending, err := s.reports.Pending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleResolveReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, errors.ErrInvalidInput)
		return
	}
	var payload struct {
		Reviewer    string `json:"reviewer"`
		ActionTaken string `json:"action_taken"`
	}
	if !decode(w, r, &payload) {
		return
	}

	if err := s.reports.Resolve(r.Context(), reportID, payload.Reviewer, payload.ActionTaken); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, errors.ErrInvalidInput)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch err {
	case errors.ErrInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrNotFound:
		status = http.StatusNotFound
	case errors.ErrNotPending, errors.ErrPendingExists, errors.ErrNoActivePunishment:
		status = http.StatusConflict
	case errors.ErrCooldownActive:
		status = http.StatusTooManyRequests
	case errors.ErrDisabled:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
