package cart

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/angelmondragon/bookworm-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
)

func seededAnonymous(t *testing.T, local *memoryLocal, remote *stubRemote, lines ...LineItem) *Service {
	t.Helper()
	local.lines = lines
	svc := newTestService(t, local, remote)
	if err := svc.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	return svc
}

func TestStartSessionMergeClampsAndWritesBack(t *testing.T) {
	t.Parallel()

	local := &memoryLocal{}
	remote := &stubRemote{lines: []LineItem{line("1", 7)}}
	svc := seededAnonymous(t, local, remote, line("1", 3))

	if err := svc.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if svc.Tier() != enums.CartTierAuthenticated {
		t.Fatalf("expected authenticated tier")
	}
	want := map[ItemID]int{"1": 8}
	if got := quantities(svc.Lines()); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := quantities(remote.stored()); !reflect.DeepEqual(got, want) {
		t.Fatalf("merged cart not written back: %v", got)
	}
	if len(local.snapshot()) != 0 || local.clears != 1 {
		t.Fatalf("anonymous local store must be cleared after merge")
	}
}

func TestStartSessionMergeAppendsAnonymousLines(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{lines: []LineItem{line("1", 1)}}
	svc := seededAnonymous(t, &memoryLocal{}, remote, line("2", 2))

	if err := svc.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	lines := svc.Lines()
	if len(lines) != 2 || lines[0].ID != "1" || lines[0].Quantity != 1 || lines[1].ID != "2" || lines[1].Quantity != 2 {
		t.Fatalf("unexpected merged lines %+v", lines)
	}
}

func TestStartSessionAdoptsRemoteWhenAnonymousEmpty(t *testing.T) {
	t.Parallel()

	local := &memoryLocal{}
	remote := &stubRemote{lines: []LineItem{line("5", 4)}}
	svc := seededAnonymous(t, local, remote)

	if err := svc.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if got := quantities(svc.Lines()); got["5"] != 4 || len(got) != 1 {
		t.Fatalf("expected remote cart verbatim, got %v", got)
	}
	if remote.replaceCalls() != 0 {
		t.Fatalf("adoption must not write back")
	}
}

func TestStartSessionRunsOncePerTransition(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{lines: []LineItem{line("1", 1)}}
	svc := seededAnonymous(t, &memoryLocal{}, remote, line("1", 1))
	ctx := context.Background()

	if err := svc.StartSession(ctx); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := svc.StartSession(ctx); err != nil {
		t.Fatalf("repeat start session: %v", err)
	}
	if remote.fetches != 1 || svc.Count() != 2 {
		t.Fatalf("merge must run once; fetches=%d count=%d", remote.fetches, svc.Count())
	}
}

func TestStartSessionFetchFailurePreservesAnonymous(t *testing.T) {
	t.Parallel()

	local := &memoryLocal{}
	remote := &stubRemote{fetchErr: errBoom}
	svc := seededAnonymous(t, local, remote, line("1", 2))

	err := svc.StartSession(context.Background())
	if !pkgerrors.IsCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	snap := svc.Snapshot()
	if snap.Tier != enums.CartTierAuthenticated || len(snap.Lines) != 0 {
		t.Fatalf("failed fetch must fall back to an empty authenticated cart: %+v", snap)
	}
	if !snap.MergeFailed || quantities(snap.UnmergedLines)["1"] != 2 {
		t.Fatalf("anonymous lines must be preserved: %+v", snap)
	}
	if len(local.snapshot()) != 1 || local.clears != 0 {
		t.Fatalf("local store must not be cleared after a failed merge")
	}
	if remote.replaceCalls() != 0 {
		t.Fatalf("nothing may be written when the remote state is unknown")
	}
}

func TestStartSessionReplaceFailureFallsBackToFetched(t *testing.T) {
	t.Parallel()

	local := &memoryLocal{}
	remote := &stubRemote{lines: []LineItem{line("1", 1)}, replaceErr: errBoom}
	svc := seededAnonymous(t, local, remote, line("2", 3))

	if err := svc.StartSession(context.Background()); !pkgerrors.IsCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	snap := svc.Snapshot()
	if got := quantities(snap.Lines); !reflect.DeepEqual(got, map[ItemID]int{"1": 1}) {
		t.Fatalf("expected fetched cart, got %v", got)
	}
	if quantities(snap.UnmergedLines)["2"] != 3 || len(local.snapshot()) != 1 {
		t.Fatalf("anonymous lines must survive a failed replace")
	}
}

func TestRetryMergeAfterReplaceFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := &memoryLocal{}
	remote := &stubRemote{lines: []LineItem{line("1", 1)}, replaceErr: errBoom}
	svc := seededAnonymous(t, local, remote, line("2", 3))

	_ = svc.StartSession(ctx)
	remote.mu.Lock()
	remote.replaceErr = nil
	remote.mu.Unlock()

	if err := svc.RetryMerge(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	want := map[ItemID]int{"1": 1, "2": 3}
	if got := quantities(svc.Lines()); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if remote.fetches != 1 {
		t.Fatalf("known remote state must not be refetched, fetches=%d", remote.fetches)
	}
	if snap := svc.Snapshot(); snap.MergeFailed || len(snap.UnmergedLines) != 0 || len(local.snapshot()) != 0 {
		t.Fatalf("successful retry must clear the anonymous tier: %+v", snap)
	}
}

func TestRetryMergeAfterFetchFailureRefetches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := &stubRemote{lines: []LineItem{line("1", 2)}, fetchErr: errBoom}
	svc := seededAnonymous(t, &memoryLocal{}, remote, line("1", 1))

	_ = svc.StartSession(ctx)
	if _, err := svc.AddItem(ctx, testDescriptor("3", "5", ""), 1); err != nil {
		t.Fatalf("add while merge failed: %v", err)
	}
	remote.mu.Lock()
	remote.fetchErr = nil
	remote.mu.Unlock()

	if err := svc.RetryMerge(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	want := map[ItemID]int{"1": 3, "3": 1}
	if got := quantities(svc.Lines()); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRetryMergeRequiresSession(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &memoryLocal{}, &stubRemote{})
	if err := svc.RetryMerge(context.Background()); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestEndSessionFlushesAndReloadsAnonymous(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := &memoryLocal{}
	remote := &stubRemote{}
	svc := seededAnonymous(t, local, remote)
	if err := svc.StartSession(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.AddItem(ctx, testDescriptor("4", "10", ""), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(local.snapshot()) != 0 {
		t.Fatalf("authenticated mutations must not reach the local store")
	}
	local.mu.Lock()
	local.lines = []LineItem{line("9", 1)}
	local.mu.Unlock()

	if err := svc.EndSession(ctx); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if got := quantities(remote.stored()); got["4"] != 2 {
		t.Fatalf("authenticated cart not flushed: %v", got)
	}
	if svc.Tier() != enums.CartTierAnonymous {
		t.Fatalf("expected anonymous tier")
	}
	if got := quantities(svc.Lines()); !reflect.DeepEqual(got, map[ItemID]int{"9": 1}) {
		t.Fatalf("expected anonymous tier from local store, got %v", got)
	}
}

func TestEndSessionFlushFailureStillCompletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := &memoryLocal{}
	remote := &stubRemote{lines: []LineItem{line("1", 1)}}
	svc := seededAnonymous(t, local, remote)
	if err := svc.StartSession(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	remote.mu.Lock()
	remote.replaceErr = errBoom
	remote.mu.Unlock()

	if err := svc.EndSession(ctx); err != nil {
		t.Fatalf("flush failure must not fail logout: %v", err)
	}
	if svc.Tier() != enums.CartTierAnonymous || svc.Count() != 0 {
		t.Fatalf("authenticated cart must be discarded")
	}
	if remote.replaceCalls() != 1 {
		t.Fatalf("expected one flush attempt")
	}
}

func TestEndSessionSkipsFlushWhenRemoteUnknown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := &memoryLocal{}
	remote := &stubRemote{fetchErr: errBoom}
	svc := seededAnonymous(t, local, remote, line("1", 2))
	_ = svc.StartSession(ctx)

	if err := svc.EndSession(ctx); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if remote.replaceCalls() != 0 {
		t.Fatalf("must not overwrite a remote cart that was never read")
	}
	if got := quantities(svc.Lines()); got["1"] != 2 {
		t.Fatalf("preserved anonymous lines must come back, got %v", got)
	}
}

func TestEndSessionKeepsLinesAddedWhileRemoteUnknown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := &memoryLocal{}
	remote := &stubRemote{fetchErr: errBoom}
	svc := seededAnonymous(t, local, remote, line("1", 2))
	_ = svc.StartSession(ctx)

	if _, err := svc.AddItem(ctx, testDescriptor("1", "10", ""), 3); err != nil {
		t.Fatalf("add existing: %v", err)
	}
	if _, err := svc.AddItem(ctx, testDescriptor("5", "10", ""), 1); err != nil {
		t.Fatalf("add new: %v", err)
	}

	if err := svc.EndSession(ctx); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if remote.replaceCalls() != 0 {
		t.Fatalf("must not overwrite a remote cart that was never read")
	}
	want := map[ItemID]int{"1": 5, "5": 1}
	if got := quantities(svc.Lines()); !reflect.DeepEqual(got, want) {
		t.Fatalf("authenticated lines must survive on the anonymous tier, got %v", got)
	}
	if got := quantities(local.snapshot()); !reflect.DeepEqual(got, want) {
		t.Fatalf("carried lines must be persisted, got %v", got)
	}
}

func TestMutationsRejectedDuringMerge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := &stubRemote{
		lines:   []LineItem{line("1", 1)},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	svc := seededAnonymous(t, &memoryLocal{}, remote, line("2", 1))

	errCh := make(chan error, 1)
	go func() { errCh <- svc.StartSession(ctx) }()
	<-remote.entered

	if _, err := svc.AddItem(ctx, testDescriptor("3", "1", ""), 1); !pkgerrors.IsCode(err, pkgerrors.CodeMergeInProgress) {
		t.Fatalf("expected merge in progress, got %v", err)
	}
	if err := svc.RemoveItem(ctx, "2"); !pkgerrors.IsCode(err, pkgerrors.CodeMergeInProgress) {
		t.Fatalf("expected merge in progress, got %v", err)
	}
	if err := svc.Clear(ctx); !pkgerrors.IsCode(err, pkgerrors.CodeMergeInProgress) {
		t.Fatalf("expected merge in progress, got %v", err)
	}
	if svc.Idle() || svc.Count() != 1 {
		t.Fatalf("reads must keep serving the current tier during merge")
	}

	close(remote.gate)
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := svc.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.AddItem(ctx, testDescriptor("3", "1", ""), 1); err != nil {
		t.Fatalf("add after merge: %v", err)
	}
}

func TestLogoutDuringMergeSupersedesResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := &memoryLocal{}
	remote := &stubRemote{
		lines:   []LineItem{line("1", 1)},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	svc := seededAnonymous(t, local, remote, line("2", 2))

	errCh := make(chan error, 1)
	go func() { errCh <- svc.StartSession(ctx) }()
	<-remote.entered

	if err := svc.EndSession(ctx); err != nil {
		t.Fatalf("end session: %v", err)
	}
	close(remote.gate)

	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected superseded merge, got %v", err)
	}
	snap := svc.Snapshot()
	if snap.Tier != enums.CartTierAnonymous {
		t.Fatalf("stale merge must not switch tiers: %+v", snap)
	}
	if got := quantities(snap.Lines); !reflect.DeepEqual(got, map[ItemID]int{"2": 2}) {
		t.Fatalf("anonymous cart must be untouched, got %v", got)
	}
	if len(local.snapshot()) != 1 {
		t.Fatalf("stale merge must not clear the local store")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := seededAnonymous(t, &memoryLocal{}, remote)

	go func() { _ = svc.StartSession(context.Background()) }()
	<-remote.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	close(remote.gate)
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatalf("wait after release: %v", err)
	}
}
