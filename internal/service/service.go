// Package service computes balances and settlement suggestions over the upstream records.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

// ErrUnavailable is returned when the records can be read neither from the source
// nor from the snapshot cache.
var ErrUnavailable = errors.New("records unavailable")

// Source supplies records and the server's own results. *upstream.Client implements it.
type Source interface {
	ListExpenses(ctx context.Context) ([]models.Expense, error)
	ListSettlements(ctx context.Context) ([]models.Settlement, error)
	GetBalances(ctx context.Context) (calculator.Balances, error)
	GetSuggestions(ctx context.Context) ([]calculator.Suggestion, error)
}

// EngineOptions selects calculator behavior.
type EngineOptions struct {
	Strategy          calculator.Strategy
	DedupParticipants bool
}

// Deps wires the service. Snapshots, Metrics and Logger are optional.
type Deps struct {
	Source    Source
	Snapshots storage.SnapshotStore
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Engine    EngineOptions

	// SnapshotInterval is the minimum gap between snapshot writes. Zero writes on every fresh read.
	SnapshotInterval time.Duration
}

// Freshness tells whether a result was computed from live records.
type Freshness struct {
	Stale     bool      // Served from the snapshot cache
	FetchedAt time.Time // When the records were read from the source
}

// RecordSet is one consistent read of every expense and settlement.
type RecordSet struct {
	Freshness
	Expenses    []models.Expense
	Settlements []models.Settlement
}

// BalanceService is the engine behind the HTTP API.
type BalanceService struct {
	source    Source
	snapshots storage.SnapshotStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
	engine    EngineOptions

	snapshotInterval time.Duration
	mu               sync.Mutex
	lastSnapshot     time.Time
}

// NewBalanceService creates a BalanceService from its dependencies.
func NewBalanceService(deps Deps) *BalanceService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := deps.Engine
	if engine.Strategy == "" {
		engine.Strategy = calculator.FixedPass
	}
	return &BalanceService{
		source:    deps.Source,
		snapshots: deps.Snapshots,
		metrics:   deps.Metrics,
		logger:    logger,
		engine:    engine,

		snapshotInterval: deps.SnapshotInterval,
	}
}

// Records reads every record from the source and caches the result. If the source
// fails, the latest cached snapshot is returned marked stale.
func (s *BalanceService) Records(ctx context.Context) (*RecordSet, error) {
	set, fetchErr := s.fetch(ctx)
	if fetchErr == nil {
		s.save(ctx, set)
		return set, nil
	}

	if s.snapshots == nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, fetchErr)
	}

	snap, err := s.snapshots.LatestSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNoSnapshot) {
			s.logger.Error("Snapshot load failed", "error", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, fetchErr)
	}

	s.metrics.ObserveStale()
	s.logger.Warn("Serving stale snapshot",
		"snapshot_id", snap.ID,
		"fetched_at", snap.FetchedAt,
		"error", fetchErr,
	)
	return &RecordSet{
		Freshness:   Freshness{Stale: true, FetchedAt: snap.FetchedAt},
		Expenses:    snap.Expenses,
		Settlements: snap.Settlements,
	}, nil
}

func (s *BalanceService) fetch(ctx context.Context) (*RecordSet, error) {
	expenses, err := s.source.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	settlements, err := s.source.ListSettlements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return &RecordSet{
		Freshness:   Freshness{FetchedAt: time.Now().UTC()},
		Expenses:    expenses,
		Settlements: settlements,
	}, nil
}

// save caches a fresh read unless a snapshot was written within the snapshot interval.
// Failures are logged, the live result is still served.
func (s *BalanceService) save(ctx context.Context, set *RecordSet) {
	if s.snapshots == nil || !s.claimSnapshot(set.FetchedAt) {
		return
	}
	snap := &models.Snapshot{
		FetchedAt:   set.FetchedAt,
		Expenses:    set.Expenses,
		Settlements: set.Settlements,
	}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		s.releaseSnapshot()
		s.logger.Error("Snapshot save failed", "error", err)
		return
	}
	s.logger.Debug("Snapshot saved", "snapshot_id", snap.ID,
		"expenses", len(snap.Expenses), "settlements", len(snap.Settlements))
}

// refreshSnapshot reads the records only to keep the cache warm, for results served
// straight from the source.
func (s *BalanceService) refreshSnapshot(ctx context.Context) {
	if s.snapshots == nil || !s.snapshotDue(time.Now().UTC()) {
		return
	}
	set, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("Snapshot refresh failed", "error", err)
		return
	}
	s.save(ctx, set)
}

func (s *BalanceService) snapshotDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnapshot.IsZero() || now.Sub(s.lastSnapshot) >= s.snapshotInterval
}

// claimSnapshot reserves the next snapshot write for a read taken at now.
func (s *BalanceService) claimSnapshot(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastSnapshot.IsZero() && now.Sub(s.lastSnapshot) < s.snapshotInterval {
		return false
	}
	s.lastSnapshot = now
	return true
}

func (s *BalanceService) releaseSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSnapshot = time.Time{}
}
