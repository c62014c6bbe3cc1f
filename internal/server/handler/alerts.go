package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// AlertRuleService defines the methods that the alert handler requires.
type AlertRuleService interface {
	List(ctx context.Context, userID string) ([]domain.AlertRule, error)
	Create(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error)
	Delete(ctx context.Context, id string) error
}

// AlertHandler manages user alert rules.
type AlertHandler struct {
	rules  AlertRuleService
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(rules AlertRuleService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{rules: rules, logger: logger}
}

// ListRules returns the rules of one user.
// GET /api/alerts/rules?user_id=...
func (h *AlertHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "list alert rules")
		return
	}
	if rules == nil {
		rules = []domain.AlertRule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"total": len(rules),
	})
}

// CreateRule stores a new rule. ID and is_active in the body are ignored.
// POST /api/alerts/rules
func (h *AlertHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.AlertRule
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created, err := h.rules.Create(r.Context(), rule)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "create alert rule")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteRule removes a rule.
// DELETE /api/alerts/rules/{id}
func (h *AlertHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, err, "delete alert rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
