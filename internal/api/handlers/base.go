package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mmynk/settleup/internal/api/dto"
	"github.com/mmynk/settleup/internal/filter"
	"github.com/mmynk/settleup/internal/service"
)

// Response headers describing data freshness.
const (
	HeaderStale     = "X-Data-Stale"
	HeaderFetchedAt = "X-Data-Fetched-At"
	HeaderRejected  = "X-Rejected-Records"
)

// Base provides shared functionality for all handlers.
type Base struct {
	svc    *service.BalanceService
	logger *slog.Logger
}

// NewBase creates a new base handler with the given service.
func NewBase(svc *service.BalanceService, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{svc: svc, logger: logger}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteServiceError maps a service error onto a status code and APIError.
func (b *Base) WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrUnavailable) {
		b.WriteError(w, http.StatusBadGateway, dto.UpstreamUnavailableError())
		return
	}
	b.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
}

// parseCriteria reads filter criteria from the query string, writing a 400 on failure.
func (b *Base) parseCriteria(w http.ResponseWriter, r *http.Request) (filter.Criteria, bool) {
	criteria, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return filter.Criteria{}, false
	}
	return criteria, true
}

// setFreshness marks responses built from cached data.
func setFreshness(w http.ResponseWriter, f service.Freshness) {
	if f.Stale {
		w.Header().Set(HeaderStale, "true")
	}
	if !f.FetchedAt.IsZero() {
		w.Header().Set(HeaderFetchedAt, f.FetchedAt.UTC().Format(time.RFC3339))
	}
}

func setRejected(w http.ResponseWriter, rejected []service.Rejection) {
	if len(rejected) > 0 {
		w.Header().Set(HeaderRejected, strconv.Itoa(len(rejected)))
	}
}
