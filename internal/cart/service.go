package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bookworm-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
	"github.com/angelmondragon/bookworm-storefront/pkg/metrics"
	"github.com/shopspring/decimal"
)

const defaultWriteTimeout = 2 * time.Second

// activeCart is the tier currently open for mutation and its lines.
type activeCart struct {
	tier  enums.CartTier
	lines lineSet
}

// ServiceParams wires the engine's collaborators.
type ServiceParams struct {
	Local        LocalStore
	Remote       RemoteGateway
	Logger       *logger.Logger
	Metrics      *metrics.CartMetrics
	WriteTimeout time.Duration
}

// Service owns the cart state for one client instance. All operations are
// serialized; session transitions block mutations until they complete.
type Service struct {
	local        LocalStore
	remote       RemoteGateway
	logg         *logger.Logger
	metrics      *metrics.CartMetrics
	writeTimeout time.Duration

	mu     sync.Mutex
	active activeCart
	// unmerged holds anonymous lines a failed merge could not reconcile.
	unmerged lineSet
	// remoteKnown is true once the authenticated tier reflects a successful fetch.
	remoteKnown bool
	mergeFailed bool
	generation  uint64
	pending     *transition
}

// AddResult reports what AddItem did and the resulting line.
type AddResult struct {
	Outcome enums.AddOutcome `json:"outcome"`
	Line    LineItem         `json:"line"`
}

// Snapshot is a read-only copy of the active cart.
type Snapshot struct {
	Tier          enums.CartTier
	Lines         []LineItem
	Count         int
	Total         decimal.Decimal
	Generation    uint64
	Reconciling   bool
	UnmergedLines []LineItem
	MergeFailed   bool
}

// NewService builds an engine starting on an empty anonymous tier. Call Restore
// to load the persisted anonymous cart.
func NewService(params ServiceParams) (*Service, error) {
	if params.Local == nil {
		return nil, fmt.Errorf("local store required")
	}
	if params.Remote == nil {
		return nil, fmt.Errorf("remote gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	writeTimeout := params.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Service{
		local:        params.Local,
		remote:       params.Remote,
		logg:         params.Logger,
		metrics:      params.Metrics,
		writeTimeout: writeTimeout,
		active:       activeCart{tier: enums.CartTierAnonymous, lines: lineSet{}},
	}, nil
}

// Restore replaces the anonymous tier with the Local Store contents. On a
// storage failure the tier stays empty and the error is returned.
func (s *Service) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return mergeInProgress(s.pending.kind)
	}
	if s.active.tier != enums.CartTierAnonymous {
		return pkgerrors.New(pkgerrors.CodeConflict, "cannot restore the anonymous cart while signed in")
	}
	lines, err := s.loadLocal(ctx)
	if err != nil {
		s.active.lines = lineSet{}
		return err
	}
	s.active.lines = lines
	return nil
}

// AddItem adds quantity copies of the described book to the active tier.
func (s *Service) AddItem(ctx context.Context, desc ItemDescriptor, quantity int) (AddResult, error) {
	if !validQuantity(quantity) {
		return AddResult{}, invalidQuantity(quantity)
	}
	if err := desc.validate(); err != nil {
		return AddResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return AddResult{}, mergeInProgress(s.pending.kind)
	}

	lines := s.active.lines.clone()
	var result AddResult
	if idx := lines.indexOf(desc.ID); idx >= 0 {
		current := lines[idx].Quantity
		next := min(current+quantity, MaxQuantity)
		if next == current {
			return AddResult{Outcome: enums.AddOutcomeMaxReached, Line: lines[idx]}, nil
		}
		lines[idx].Quantity = next
		result = AddResult{Outcome: enums.AddOutcomeIncremented, Line: lines[idx]}
	} else {
		line, err := NewLineItem(desc, quantity)
		if err != nil {
			return AddResult{}, err
		}
		lines = append(lines, line)
		result = AddResult{Outcome: enums.AddOutcomeAdded, Line: line}
	}

	return result, s.commitLocked(ctx, lines)
}

// UpdateQuantity sets a line's quantity, clamped to the ceiling. A quantity of
// zero or less removes the line. Unknown ids are ignored.
func (s *Service) UpdateQuantity(ctx context.Context, id ItemID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return mergeInProgress(s.pending.kind)
	}

	idx := s.active.lines.indexOf(id)
	if idx < 0 {
		return nil
	}
	next := clampQuantity(quantity)
	if s.active.lines[idx].Quantity == next {
		return nil
	}
	lines := s.active.lines.clone()
	lines[idx].Quantity = next
	return s.commitLocked(ctx, lines)
}

// RemoveItem drops a line. Unknown ids are ignored.
func (s *Service) RemoveItem(ctx context.Context, id ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return mergeInProgress(s.pending.kind)
	}
	if s.active.lines.indexOf(id) < 0 {
		return nil
	}
	return s.commitLocked(ctx, s.active.lines.without(id))
}

// Clear empties the active tier and, when anonymous, purges the Local Store entry.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return mergeInProgress(s.pending.kind)
	}
	s.active.lines = lineSet{}
	if s.active.tier != enums.CartTierAnonymous {
		return nil
	}
	return s.withLocal(ctx, "clear", s.local.Clear)
}

// Save persists the active tier explicitly: the anonymous tier to the Local
// Store, the authenticated tier to the storefront.
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.pending != nil {
		kind := s.pending.kind
		s.mu.Unlock()
		return mergeInProgress(kind)
	}
	if s.active.tier == enums.CartTierAnonymous {
		defer s.mu.Unlock()
		lines := s.active.lines.clone()
		return s.withLocal(ctx, "save", func(ctx context.Context) error {
			return s.local.Save(ctx, lines)
		})
	}
	if !s.remoteKnown {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, "remote cart state unknown; retry the merge before saving")
	}
	lines := s.active.lines.clone()
	s.mu.Unlock()

	if err := s.remote.ReplaceCart(ctx, lines); err != nil {
		return remoteFailure("replace", err)
	}
	return nil
}

// Count is the sum of quantities in the active tier.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.lines.count()
}

// Total is the discount-aware sum of line totals in the active tier.
func (s *Service) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.lines.total()
}

// Tier reports the active tier.
func (s *Service) Tier() enums.CartTier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.tier
}

// Lines returns a copy of the active tier's lines.
func (s *Service) Lines() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.lines.clone()
}

// Snapshot returns a consistent read-only view of the engine state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Tier:          s.active.tier,
		Lines:         s.active.lines.clone(),
		Count:         s.active.lines.count(),
		Total:         s.active.lines.total(),
		Generation:    s.generation,
		Reconciling:   s.pending != nil,
		UnmergedLines: s.unmerged.clone(),
		MergeFailed:   s.mergeFailed,
	}
}

// commitLocked installs lines as the active tier and persists the anonymous
// tier. Memory keeps the change even when persistence fails.
func (s *Service) commitLocked(ctx context.Context, lines lineSet) error {
	s.active.lines = lines
	if s.active.tier != enums.CartTierAnonymous {
		return nil
	}
	persisted := lines.clone()
	return s.withLocal(ctx, "save", func(ctx context.Context) error {
		return s.local.Save(ctx, persisted)
	})
}

// withLocal runs a Local Store call bounded by the write timeout. The caller's
// cancellation is ignored because memory has already changed.
func (s *Service) withLocal(ctx context.Context, op string, fn func(context.Context) error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()
	if err := fn(writeCtx); err != nil {
		s.metrics.IncStorageFailure(op)
		logCtx := s.logg.WithCartTier(ctx, enums.CartTierAnonymous.String())
		s.logg.Error(logCtx, "local cart "+op+" failed", err)
		return storageFailure(op, err)
	}
	return nil
}

func (s *Service) loadLocal(ctx context.Context) (lineSet, error) {
	var loaded []LineItem
	err := s.withLocal(ctx, "load", func(ctx context.Context) error {
		var err error
		loaded, err = s.local.Load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	lines, dropped := normalizeLines(loaded)
	if dropped > 0 {
		logCtx := s.logg.WithField(ctx, "dropped_lines", dropped)
		s.logg.Warn(logCtx, "normalized malformed lines from local cart")
	}
	return lines, nil
}
