// Package session tracks whether a storefront account is signed in and drives
// the cart engine's tier switches on each transition.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bookworm-storefront/internal/storefront"
	"github.com/angelmondragon/bookworm-storefront/pkg/auth"
	"github.com/angelmondragon/bookworm-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
	"github.com/angelmondragon/bookworm-storefront/pkg/metrics"
)

// CartEngine is the part of cart.Service the binding drives.
type CartEngine interface {
	Restore(ctx context.Context) error
	StartSession(ctx context.Context) error
	EndSession(ctx context.Context) error
}

// Authenticator is the storefront's token and account surface.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*storefront.TokenPair, error)
	CurrentUser(ctx context.Context, token string) (*storefront.User, error)
}

// CredentialStore persists the session tokens on the device profile.
type CredentialStore interface {
	AccessToken(ctx context.Context) (string, error)
	Store(ctx context.Context, accessToken, refreshToken string) error
	Clear(ctx context.Context) error
}

// BindingParams wires the binding's collaborators.
type BindingParams struct {
	Engine      CartEngine
	Auth        Authenticator
	Credentials CredentialStore
	Logger      *logger.Logger
	Metrics     *metrics.CartMetrics
}

// Binding is the two-state session machine.
type Binding struct {
	engine  CartEngine
	authn   Authenticator
	creds   CredentialStore
	logg    *logger.Logger
	metrics *metrics.CartMetrics
	now     func() time.Time

	// transitionMu serialises Login and Logout end to end.
	transitionMu sync.Mutex

	mu    sync.RWMutex
	state enums.SessionState
	user  *storefront.User
}

func NewBinding(params BindingParams) (*Binding, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("cart engine required")
	}
	if params.Auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if params.Credentials == nil {
		return nil, fmt.Errorf("credential store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Binding{
		engine:  params.Engine,
		authn:   params.Auth,
		creds:   params.Credentials,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     time.Now,
		state:   enums.SessionStateAnonymous,
	}, nil
}

// State returns the current session state and, when signed in, the account.
func (b *Binding) State() (enums.SessionState, *storefront.User) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.user == nil {
		return b.state, nil
	}
	user := *b.user
	return b.state, &user
}

// Start restores the anonymous cart and resumes a stored session when its
// credential still checks out. Any credential failure clears the stored
// tokens and leaves the binding anonymous.
func (b *Binding) Start(ctx context.Context) error {
	restoreErr := b.engine.Restore(ctx)
	if restoreErr != nil {
		b.logg.Error(ctx, "anonymous cart restore failed; starting empty", restoreErr)
	}

	token, err := b.creds.AccessToken(ctx)
	if err != nil {
		b.resolveAnonymous(ctx, "stored credential unreadable", err)
		return restoreErr
	}
	if token == "" {
		return restoreErr
	}

	if _, err := auth.InspectAccessToken(token, b.now()); err != nil {
		b.resolveAnonymous(ctx, "stored credential rejected", err)
		return restoreErr
	}
	user, err := b.authn.CurrentUser(ctx, token)
	if err != nil {
		b.resolveAnonymous(ctx, "stored session check failed", err)
		return restoreErr
	}

	if err := b.OnSessionStart(ctx, user); err != nil {
		b.logg.Error(ctx, "cart merge on session resume failed", err)
	}
	return restoreErr
}

// Login signs in, stores the tokens and fires the session start hook. A merge
// failure is returned alongside the user; the session itself is established.
func (b *Binding) Login(ctx context.Context, email, password string) (*storefront.User, error) {
	b.transitionMu.Lock()
	defer b.transitionMu.Unlock()

	if state, _ := b.State(); state == enums.SessionStateAuthenticated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already signed in")
	}

	pair, err := b.authn.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := b.creds.Store(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, err
	}
	user, err := b.authn.CurrentUser(ctx, pair.AccessToken)
	if err != nil {
		b.resolveAnonymous(ctx, "new session check failed", err)
		return nil, err
	}

	return user, b.OnSessionStart(ctx, user)
}

// Logout fires the session end hook and then drops the stored tokens. The
// logout flush still authenticates with the outgoing session's token.
func (b *Binding) Logout(ctx context.Context) error {
	b.transitionMu.Lock()
	defer b.transitionMu.Unlock()

	endErr := b.OnSessionEnd(ctx)
	if err := b.creds.Clear(ctx); err != nil {
		b.logg.Error(ctx, "clearing stored credentials failed", err)
	}
	return endErr
}

// OnSessionStart moves to authenticated and runs merge-on-login.
func (b *Binding) OnSessionStart(ctx context.Context, user *storefront.User) error {
	b.mu.Lock()
	b.state = enums.SessionStateAuthenticated
	b.user = user
	b.mu.Unlock()

	b.metrics.IncTransition(enums.SessionStateAuthenticated.String())
	if user != nil {
		ctx = b.logg.WithField(ctx, "user_id", user.ID)
	}
	b.logg.Info(ctx, "session started")
	return b.engine.StartSession(ctx)
}

// OnSessionEnd moves to anonymous and runs the logout flush.
func (b *Binding) OnSessionEnd(ctx context.Context) error {
	b.mu.Lock()
	wasAuthenticated := b.state == enums.SessionStateAuthenticated
	b.state = enums.SessionStateAnonymous
	b.user = nil
	b.mu.Unlock()

	if wasAuthenticated {
		b.metrics.IncTransition(enums.SessionStateAnonymous.String())
		b.logg.Info(ctx, "session ended")
	}
	return b.engine.EndSession(ctx)
}

func (b *Binding) resolveAnonymous(ctx context.Context, reason string, cause error) {
	b.logg.Warn(b.logg.WithField(ctx, "reason", cause.Error()), reason+"; continuing anonymously")
	if err := b.creds.Clear(ctx); err != nil {
		b.logg.Error(ctx, "clearing stored credentials failed", err)
	}
	b.mu.Lock()
	b.state = enums.SessionStateAnonymous
	b.user = nil
	b.mu.Unlock()
}
