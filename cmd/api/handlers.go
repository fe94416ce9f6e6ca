package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"

	"optionflow/agreement"
	"optionflow/auth"
	"optionflow/ledger"
	"optionflow/observability"
	"optionflow/oracle"
)

// server holds the engine's HTTP surface: party operations, the oracle
// callback entry points, and the administrator endpoints.
type server struct {
	agreements *agreement.Service
	gateway    *oracle.Gateway
	authSvc    *auth.Service
	guard      *auth.Guard
	metrics    *observability.Metrics
	logger     *log.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /agreements", s.handleCreate)
	mux.HandleFunc("POST /agreements/enter", s.handleEnter)
	mux.HandleFunc("POST /agreements/execute", s.handleExecute)
	mux.HandleFunc("POST /agreements/expire", s.handleExpire)

	mux.HandleFunc("POST /callbacks/initialize", s.handleInitialize)
	mux.HandleFunc("POST /callbacks/settle", s.handleSettle)

	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("POST /admin/oracle/payment", s.admin(s.handleSetPayment))
	mux.HandleFunc("POST /admin/oracle/jobs", s.admin(s.handleSetJobs))
	mux.HandleFunc("POST /admin/oracle/cancel", s.admin(s.handleCancel))
	mux.HandleFunc("POST /admin/withdraw", s.admin(s.handleWithdraw))
	mux.HandleFunc("POST /admin/transfer", s.admin(s.handleTransfer))

	mux.Handle("GET /metrics", s.metrics.Handler())

	return mux
}

type adminHandler func(w http.ResponseWriter, r *http.Request, caller string)

// admin authenticates the session token and hands the authenticated party
// identity to the handler. The guarded operations re-check ownership.
func (s *server) admin(next adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		caller, err := s.authSvc.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, caller)
	}
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Party1  string `json:"party1"`
		Amount  string `json:"amount"`
		Premium string `json:"premium"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, premium, err := parsePair(req.Amount, req.Premium)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	correlationID, err := s.agreements.Create(r.Context(), req.Party1, amount, premium)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"correlation_id": correlationID})
}

func (s *server) handleEnter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Party2  string `json:"party2"`
		Party1  string `json:"party1"`
		Amount  string `json:"amount"`
		Premium string `json:"premium"`
		Payment string `json:"payment"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, premium, err := parsePair(req.Amount, req.Premium)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.agreements.Enter(r.Context(), req.Party2, req.Party1, amount, premium, payment); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "entered"})
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Party2  string `json:"party2"`
		Party1  string `json:"party1"`
		Amount  string `json:"amount"`
		Premium string `json:"premium"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, premium, err := parsePair(req.Amount, req.Premium)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.agreements.Execute(r.Context(), req.Party2, req.Party1, amount, premium); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

func (s *server) handleExpire(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Party1  string `json:"party1"`
		Amount  string `json:"amount"`
		Premium string `json:"premium"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, premium, err := parsePair(req.Amount, req.Premium)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.agreements.EndExpired(r.Context(), req.Party1, amount, premium); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	oracleID := r.Header.Get("X-Oracle-ID")
	var req struct {
		CorrelationID string `json:"correlation_id"`
		Value         string `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, err := parseAmount(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.agreements.Initialize(r.Context(), oracleID, req.CorrelationID, raw); err != nil {
		s.countCallbackRejection(err)
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}

func (s *server) handleSettle(w http.ResponseWriter, r *http.Request) {
	oracleID := r.Header.Get("X-Oracle-ID")
	var req struct {
		CorrelationID string `json:"correlation_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.agreements.Settle(r.Context(), oracleID, req.CorrelationID); err != nil {
		s.countCallbackRejection(err)
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.authSvc.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": res.Token})
}

func (s *server) handleSetPayment(w http.ResponseWriter, r *http.Request, caller string) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.gateway.SetPayment(caller, amount); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *server) handleSetJobs(w http.ResponseWriter, r *http.Request, caller string) {
	var req struct {
		PricingJobID    string `json:"pricing_job_id"`
		SettlementJobID string `json:"settlement_job_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.gateway.SetJobIDs(caller, req.PricingJobID, req.SettlementJobID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *server) handleCancel(w http.ResponseWriter, r *http.Request, caller string) {
	var req struct {
		CorrelationID string `json:"correlation_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.gateway.Cancel(r.Context(), caller, req.CorrelationID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.metrics.RequestsCancelled.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *server) handleWithdraw(w http.ResponseWriter, r *http.Request, caller string) {
	withdrawn, err := s.gateway.WithdrawPayment(r.Context(), caller)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": withdrawn.String()})
}

func (s *server) handleTransfer(w http.ResponseWriter, r *http.Request, caller string) {
	var req struct {
		NextOwner string `json:"next_owner"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.guard.Transfer(caller, req.NextOwner); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": req.NextOwner})
}

func (s *server) countCallbackRejection(err error) {
	switch {
	case errors.Is(err, oracle.ErrUnauthorized):
		s.metrics.CallbacksRejected.WithLabelValues("unauthorized").Inc()
	case errors.Is(err, oracle.ErrUnknownRequest):
		s.metrics.CallbacksRejected.WithLabelValues("unknown_correlation").Inc()
	}
}

// writeServiceError maps domain errors onto HTTP statuses. The error text is
// surfaced as-is: every precondition failure carries its reason string.
func (s *server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agreement.ErrNoPayment),
		errors.Is(err, agreement.ErrPremiumNotMet),
		errors.Is(err, agreement.ErrNotExpired),
		errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agreement.ErrNotFound),
		errors.Is(err, agreement.ErrPendingNotFound),
		errors.Is(err, agreement.ErrSettlementNotFound),
		errors.Is(err, oracle.ErrUnknownRequest):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, agreement.ErrAlreadyExists),
		errors.Is(err, agreement.ErrHasCounterparty),
		errors.Is(err, agreement.ErrExpired),
		errors.Is(err, agreement.ErrAlreadyExecuted),
		errors.Is(err, oracle.ErrNotExpired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, agreement.ErrWrongCounterparty),
		errors.Is(err, oracle.ErrUnauthorized),
		errors.Is(err, auth.ErrNotAdministrator):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, agreement.ErrNotApproved),
		errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.internalError(w, err)
	}
}

func (s *server) internalError(w http.ResponseWriter, err error) {
	s.logger.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	return v, nil
}

func parsePair(amount, premium string) (*big.Int, *big.Int, error) {
	a, err := parseAmount(amount)
	if err != nil {
		return nil, nil, err
	}
	p, err := parseAmount(premium)
	if err != nil {
		return nil, nil, err
	}
	return a, p, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
