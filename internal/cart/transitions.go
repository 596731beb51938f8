package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/bookworm-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/angelmondragon/bookworm-storefront/pkg/metrics"
)

type transitionKind string

const (
	transitionMerge transitionKind = "merge"
	transitionFlush transitionKind = "flush"
)

// transition is one in-flight merge or flush. done is closed when it commits
// or is superseded.
type transition struct {
	generation uint64
	kind       transitionKind
	done       chan struct{}
}

// beginLocked starts a new transition generation, superseding any in-flight one.
func (s *Service) beginLocked(kind transitionKind) *transition {
	s.supersedeLocked()
	t := &transition{
		generation: s.generation,
		kind:       kind,
		done:       make(chan struct{}),
	}
	s.pending = t
	return t
}

// supersedeLocked bumps the generation so the in-flight transition, if any,
// discards its result when it returns.
func (s *Service) supersedeLocked() {
	s.generation++
	if s.pending != nil {
		close(s.pending.done)
		s.pending = nil
	}
}

// finish applies fn under the lock when t is still current. A stale transition
// leaves state untouched and reports ErrSuperseded.
func (s *Service) finish(ctx context.Context, t *transition, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != t.generation || s.pending != t {
		s.metrics.IncSuperseded()
		s.logg.Warn(s.logg.WithGeneration(ctx, t.generation), "discarding superseded cart "+string(t.kind))
		return ErrSuperseded
	}
	fn()
	s.pending = nil
	close(t.done)
	return nil
}

// StartSession switches to the authenticated tier, merging the anonymous cart
// into the remote one. It runs once per anonymous to authenticated transition;
// calling it while already signed in is a no-op.
func (s *Service) StartSession(ctx context.Context) error {
	s.mu.Lock()
	if s.pending != nil && s.pending.kind == transitionMerge {
		s.mu.Unlock()
		return nil
	}
	if s.pending == nil && s.active.tier == enums.CartTierAuthenticated {
		s.mu.Unlock()
		return nil
	}

	// A pending flush means the anonymous tier has not been reloaded yet.
	reload := s.active.tier == enums.CartTierAuthenticated
	anonymous := s.active.lines.clone()
	if reload {
		anonymous = nil
	}
	t := s.beginLocked(transitionMerge)
	s.mu.Unlock()

	ctx = s.logg.WithGeneration(ctx, t.generation)
	if reload {
		lines, err := s.loadLocal(ctx)
		if err != nil {
			s.logg.Warn(ctx, "merging without anonymous cart: local store unreadable")
		}
		anonymous = lines
	}
	return s.reconcile(ctx, t, nil, anonymous)
}

// RetryMerge reruns a merge that failed, using the preserved anonymous lines.
// When the remote cart was fetched successfully the current authenticated lines
// are used as the base; otherwise the remote cart is fetched again and the lines
// edited since the failure are merged along with the preserved ones.
func (s *Service) RetryMerge(ctx context.Context) error {
	s.mu.Lock()
	if s.pending != nil {
		kind := s.pending.kind
		s.mu.Unlock()
		return mergeInProgress(kind)
	}
	if s.active.tier != enums.CartTierAuthenticated {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, "no signed-in session to merge into")
	}
	if !s.mergeFailed && len(s.unmerged) == 0 {
		s.mu.Unlock()
		return nil
	}

	var base []LineItem
	anonymous := s.unmerged.clone()
	if s.remoteKnown {
		base = s.active.lines.clone()
	} else {
		anonymous = MergeLines(s.active.lines, anonymous)
	}
	t := s.beginLocked(transitionMerge)
	s.mu.Unlock()

	return s.reconcile(s.logg.WithGeneration(ctx, t.generation), t, base, anonymous)
}

// reconcile runs the merge-on-login algorithm. A nil base means the remote cart
// must be fetched. A successful merge purges the Local Store entry.
func (s *Service) reconcile(ctx context.Context, t *transition, base []LineItem, anonymous []LineItem) error {
	started := time.Now()
	observe := func(outcome string) {
		s.metrics.ObserveMerge(outcome, time.Since(started))
	}

	remoteLines := lineSet(base)
	if base == nil {
		fetched, err := s.remote.FetchCart(ctx)
		if err != nil {
			s.logg.Error(ctx, "merge abandoned: remote cart fetch failed", err)
			if ferr := s.finish(ctx, t, func() {
				s.active = activeCart{tier: enums.CartTierAuthenticated, lines: lineSet{}}
				s.unmerged = lineSet(anonymous).clone()
				s.remoteKnown = false
				s.mergeFailed = true
			}); ferr != nil {
				return ferr
			}
			observe(metrics.MergeOutcomeFetchFailed)
			return remoteFailure("fetch", err)
		}
		normalized, dropped := normalizeLines(fetched)
		if dropped > 0 {
			s.logg.Warn(s.logg.WithField(ctx, "dropped_lines", dropped), "normalized malformed lines from remote cart")
		}
		remoteLines = normalized
	}

	if len(anonymous) == 0 {
		if err := s.finish(ctx, t, func() {
			s.active = activeCart{tier: enums.CartTierAuthenticated, lines: remoteLines.clone()}
			s.unmerged = nil
			s.remoteKnown = true
			s.mergeFailed = false
		}); err != nil {
			return err
		}
		observe(metrics.MergeOutcomeAdopted)
		return nil
	}

	merged := MergeLines(remoteLines, anonymous)
	if err := s.remote.ReplaceCart(ctx, merged); err != nil {
		s.logg.Error(ctx, "merge abandoned: remote cart replace failed", err)
		if ferr := s.finish(ctx, t, func() {
			s.active = activeCart{tier: enums.CartTierAuthenticated, lines: remoteLines.clone()}
			s.unmerged = lineSet(anonymous).clone()
			s.remoteKnown = true
			s.mergeFailed = true
		}); ferr != nil {
			return ferr
		}
		observe(metrics.MergeOutcomeReplaceFail)
		return remoteFailure("replace", err)
	}

	var clearErr error
	if err := s.finish(ctx, t, func() {
		s.active = activeCart{tier: enums.CartTierAuthenticated, lines: lineSet(merged)}
		s.unmerged = nil
		s.remoteKnown = true
		s.mergeFailed = false
		clearErr = s.withLocal(ctx, "clear", s.local.Clear)
	}); err != nil {
		return err
	}
	observe(metrics.MergeOutcomeMerged)
	s.logg.Info(s.logg.WithField(ctx, "lines", len(merged)), "anonymous cart merged into remote cart")
	return clearErr
}

// EndSession flushes the authenticated tier to the storefront on a best-effort
// basis and reactivates the anonymous tier from the Local Store. A flush failure
// is logged and never blocks the switch. When the remote cart state is unknown
// nothing is flushed; the authenticated lines are folded into the anonymous
// tier instead so a later login can merge them. Calling it while anonymous is a
// no-op, except that an in-flight merge is cancelled.
func (s *Service) EndSession(ctx context.Context) error {
	s.mu.Lock()
	if s.pending != nil && s.pending.kind == transitionFlush {
		s.mu.Unlock()
		return nil
	}
	if s.active.tier == enums.CartTierAnonymous {
		// A merge that has not committed never touched the anonymous tier.
		if s.pending != nil {
			s.supersedeLocked()
		}
		s.mu.Unlock()
		return nil
	}

	lines := s.active.lines.clone()
	flushable := s.remoteKnown
	fallback := s.unmerged.clone()
	t := s.beginLocked(transitionFlush)
	s.mu.Unlock()

	ctx = s.logg.WithGeneration(s.logg.WithCartTier(ctx, enums.CartTierAuthenticated.String()), t.generation)
	if flushable {
		if err := s.remote.ReplaceCart(ctx, lines); err != nil {
			s.metrics.IncFlushFailure()
			s.logg.Error(ctx, "logout flush failed; discarding authenticated cart", err)
		}
	} else if len(lines) > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "lines", len(lines)), "remote cart state unknown; keeping authenticated lines on the anonymous cart")
	}

	anonymous, loadErr := s.loadLocal(ctx)
	if loadErr != nil {
		anonymous = fallback
	}
	carry := !flushable && len(lines) > 0
	if carry {
		anonymous = MergeLines(anonymous, lines)
	}

	var saveErr error
	if err := s.finish(ctx, t, func() {
		s.active = activeCart{tier: enums.CartTierAnonymous, lines: anonymous}
		s.unmerged = nil
		s.remoteKnown = false
		s.mergeFailed = false
		if carry {
			persisted := anonymous.clone()
			saveErr = s.withLocal(ctx, "save", func(ctx context.Context) error {
				return s.local.Save(ctx, persisted)
			})
		}
	}); err != nil {
		return err
	}
	if loadErr != nil {
		return loadErr
	}
	return saveErr
}

// Idle reports whether no session transition is in flight.
func (s *Service) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending == nil
}

// Wait blocks until no session transition is in flight.
func (s *Service) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		pending := s.pending
		s.mu.Unlock()
		if pending == nil {
			return nil
		}
		select {
		case <-pending.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
