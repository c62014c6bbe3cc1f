package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/pipeline"
	"github.com/alanyoungcy/arbscanner/internal/service"
)

// OpportunityService defines the methods that the opportunity handler requires.
type OpportunityService interface {
	FindOpportunities(ctx context.Context, crypto string, minSpreadPercent, fiatAmount decimal.Decimal, limit int) (service.OpportunityResult, error)
	EvaluatePair(ctx context.Context, buyVenue, sellVenue, crypto string, fiatAmount decimal.Decimal) (domain.Opportunity, error)
	TopOpportunities(ctx context.Context) (pipeline.TopOpportunities, error)
	RecentOpportunities(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

var (
	defaultMinSpread = decimal.RequireFromString("0.5")
	defaultAmount    = decimal.NewFromInt(100000)
)

const (
	defaultOpportunityLimit = 10
	maxOpportunityLimit     = 50
	maxHistoryLimit         = 500
)

// OpportunityHandler serves arbitrage opportunity endpoints.
type OpportunityHandler struct {
	opps   OpportunityService
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps OpportunityService, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{opps: opps, logger: logger}
}

// ListOpportunities computes ranked opportunities from current snapshots.
// GET /api/opportunities?crypto=USDT&min_spread=0.5&amount=100000&limit=10
func (h *OpportunityHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	minSpread, err := queryDecimal(r, "min_spread", defaultMinSpread)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := queryDecimal(r, "amount", defaultAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := queryInt(r, "limit", defaultOpportunityLimit, maxOpportunityLimit)

	res, err := h.opps.FindOpportunities(r.Context(), r.URL.Query().Get("crypto"), minSpread, amount, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "find opportunities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities":  res.Opportunities,
		"total":          len(res.Opportunities),
		"data_available": res.DataAvailable,
		"updated_at":     time.Now().UTC(),
	})
}

// TopOpportunities returns the ranked list published by the last scan tick.
// GET /api/opportunities/top
func (h *OpportunityHandler) TopOpportunities(w http.ResponseWriter, r *http.Request) {
	top, err := h.opps.TopOpportunities(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "get top opportunities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tick_id":       top.TickID,
		"opportunities": top.Opportunities,
		"total":         len(top.Opportunities),
		"updated_at":    top.GeneratedAt,
	})
}

// History lists persisted opportunities, newest first.
// GET /api/opportunities/history?limit=100
func (h *OpportunityHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, maxHistoryLimit)
	opps, err := h.opps.RecentOpportunities(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "list opportunity history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"total":         len(opps),
	})
}

type evaluateRequest struct {
	BuyExchange  string              `json:"buy_exchange"`
	SellExchange string              `json:"sell_exchange"`
	Crypto       string              `json:"crypto"`
	Amount       decimal.NullDecimal `json:"amount"`
}

// Evaluate prices one venue pair on demand.
// POST /api/opportunities/evaluate
func (h *OpportunityHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	amount := defaultAmount
	if req.Amount.Valid {
		amount = req.Amount.Decimal
	}
	crypto := strings.TrimSpace(req.Crypto)
	if crypto == "" {
		crypto = "USDT"
	}

	opp, err := h.opps.EvaluatePair(r.Context(), req.BuyExchange, req.SellExchange, crypto, amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "evaluate pair")
		return
	}
	writeJSON(w, http.StatusOK, opp)
}
