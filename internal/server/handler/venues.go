package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// VenueService defines the methods that the venue handler requires.
type VenueService interface {
	ListVenues() []domain.Venue
	GetFeeSchedule(venue string) (domain.FeeEntry, error)
}

// VenueHandler serves venue metadata and fee tables.
type VenueHandler struct {
	venues VenueService
	logger *slog.Logger
}

// NewVenueHandler creates a VenueHandler.
func NewVenueHandler(venues VenueService, logger *slog.Logger) *VenueHandler {
	return &VenueHandler{venues: venues, logger: logger}
}

// ListVenues returns every configured venue.
// GET /api/venues
func (h *VenueHandler) ListVenues(w http.ResponseWriter, r *http.Request) {
	venues := h.venues.ListVenues()
	writeJSON(w, http.StatusOK, map[string]any{
		"exchanges": venues,
		"total":     len(venues),
	})
}

// GetFees returns one venue's fee schedule.
// GET /api/venues/{id}/fees
func (h *VenueHandler) GetFees(w http.ResponseWriter, r *http.Request) {
	entry, err := h.venues.GetFeeSchedule(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "get fee schedule")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
