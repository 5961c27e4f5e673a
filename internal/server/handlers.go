package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/algoscript/internal/interpreter"
	"github.com/rxtech-lab/algoscript/internal/journal"
	"github.com/rxtech-lab/algoscript/internal/types"
	"go.uber.org/zap"
)

// ValidateRequest is the body of the validate endpoint.
type ValidateRequest struct {
	Code string `json:"code"`
}

// ExecuteRequest is the body of both execute endpoints. Omitted fields take
// the server defaults.
type ExecuteRequest struct {
	Code           string   `json:"code"`
	InitialBalance *float64 `json:"initial_balance,omitempty"`
	Events         []string `json:"events,omitempty"`
	Symbol         string   `json:"symbol,omitempty"`
}

// SimulateCandleResponse is returned after a candle is appended.
type SimulateCandleResponse struct {
	Message      string       `json:"message"`
	Candle       types.Candle `json:"candle"`
	CurrentPrice float64      `json:"current_price"`
}

// RunResponse is a journaled run with its orders.
type RunResponse struct {
	Run    journal.RunSummary `json:"run"`
	Orders []types.Order      `json:"orders"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AlgoScript Trading Bot Platform API"})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !s.decode(w, r, &req) {
		return
	}

	result := s.interpreter.Validate(req.Code)
	s.metrics.Validations.WithLabelValues(strconv.FormatBool(result.Valid)).Inc()

	writeJSON(w, http.StatusOK, result)
}

// handleExecute runs a lone NEW_CANDLE event without advancing the market.
// Any other event list is simulated in full and the last result returned.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !s.decode(w, r, &req) {
		return
	}

	start := time.Now()
	request, events := s.request(req)

	var result types.ExecutionResult

	switch {
	case len(events) == 1 && events[0] == string(types.EventNewCandle):
		result = s.interpreter.Execute(r.Context(), request)
	default:
		results := s.run(r.Context(), request, events)
		if len(results) == 0 {
			result = types.Failed("No results")
		} else {
			result = results[len(results)-1]
		}
	}

	s.metrics.observeExecution("execute", result.Success, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExecuteMulti(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !s.decode(w, r, &req) {
		return
	}

	start := time.Now()
	request, events := s.request(req)

	results := s.run(r.Context(), request, events)

	success := len(results) > 0 && results[len(results)-1].Success
	s.metrics.observeExecution("execute-multi", success, time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, results)
}

// run simulates events and journals the run when a journal is configured.
func (s *Server) run(ctx context.Context, request interpreter.Request, events []string) []types.ExecutionResult {
	results := s.interpreter.ExecuteWithEvents(ctx, request, events)
	if s.journal == nil || len(results) == 0 {
		return results
	}

	state := results[len(results)-1].TradingState
	if state == nil {
		return results
	}

	if err := s.journal.RecordRun(ctx, state.ID, state.Symbol, results); err != nil {
		s.logger.Warn("Failed to journal run", zap.String("run_id", state.ID), zap.Error(err))
	}

	return results
}

func (s *Server) request(req ExecuteRequest) (interpreter.Request, []string) {
	balance := s.initialBalance
	if req.InitialBalance != nil {
		balance = *req.InitialBalance
	}

	events := req.Events
	if events == nil {
		events = s.defaultEvents
	}

	return interpreter.Request{Code: req.Code, Symbol: req.Symbol, InitialBalance: balance}, events
}

func (s *Server) handleExample(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"code": s.interpreter.ExampleCode()})
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	m, err := s.markets.get(r.Context(), symbol)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "Market data error", err)

		return
	}

	snapshot, err := m.snapshot()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "Market data error", err)

		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleSimulateCandle(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	m, err := s.markets.get(r.Context(), symbol)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "Simulation error", err)

		return
	}

	candle, price, err := m.nextCandle(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "Simulation error", err)

		return
	}

	s.metrics.SimulatedCandles.WithLabelValues(candle.Symbol).Inc()

	writeJSON(w, http.StatusOK, SimulateCandleResponse{
		Message:      "New candle generated",
		Candle:       candle,
		CurrentPrice: price,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Journal is disabled"})

		return
	}

	runID := mux.Vars(r)["run_id"]

	summary, err := s.journal.Run(r.Context(), runID)
	if err != nil {
		s.fail(w, http.StatusNotFound, "Run not found", err)

		return
	}

	orders, err := s.journal.Orders(r.Context(), runID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "Journal error", err)

		return
	}

	writeJSON(w, http.StatusOK, RunResponse{Run: summary, Orders: orders})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.fail(w, http.StatusUnprocessableEntity, "Invalid request body", err)

		return false
	}

	return true
}

func (s *Server) fail(w http.ResponseWriter, status int, prefix string, err error) {
	s.logger.Error(prefix, zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, errorResponse{Detail: prefix + ": " + err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
