package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
)

var errBoom = errors.New("boom")

type memoryLocal struct {
	mu       sync.Mutex
	lines    []LineItem
	loadErr  error
	saveErr  error
	clearErr error
	saves    int
	clears   int
}

func (m *memoryLocal) Load(context.Context) ([]LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]LineItem(nil), m.lines...), nil
}

func (m *memoryLocal) Save(_ context.Context, lines []LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.lines = append([]LineItem(nil), lines...)
	return nil
}

func (m *memoryLocal) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.lines = nil
	return nil
}

func (m *memoryLocal) snapshot() []LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LineItem(nil), m.lines...)
}

type stubRemote struct {
	mu         sync.Mutex
	lines      []LineItem
	fetchErr   error
	replaceErr error
	fetches    int
	replaced   [][]LineItem
	// gate, when set, blocks FetchCart until closed; entered is signalled first.
	gate    chan struct{}
	entered chan struct{}
}

func (r *stubRemote) FetchCart(ctx context.Context) ([]LineItem, error) {
	r.mu.Lock()
	gate, entered := r.gate, r.entered
	r.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return append([]LineItem(nil), r.lines...), nil
}

func (r *stubRemote) ReplaceCart(_ context.Context, lines []LineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced = append(r.replaced, append([]LineItem(nil), lines...))
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.lines = append([]LineItem(nil), lines...)
	return nil
}

func (r *stubRemote) replaceCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replaced)
}

func (r *stubRemote) stored() []LineItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LineItem(nil), r.lines...)
}

func newTestService(t *testing.T, local *memoryLocal, remote *stubRemote) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Local: local, Remote: remote, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func line(id ItemID, qty int) LineItem {
	return LineItem{ID: id, Title: "Book " + string(id), AuthorName: "Author", UnitPrice: MustPrice("10.00"), Quantity: qty}
}

func quantities(lines []LineItem) map[ItemID]int {
	out := make(map[ItemID]int, len(lines))
	for _, l := range lines {
		out[l.ID] = l.Quantity
	}
	return out
}
