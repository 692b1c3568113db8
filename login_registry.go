package goPhoneAuth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Credential keys understood by [PhoneLoginStrategy].
const (
	CredentialPhone          = "phone"
	CredentialOTP            = "otp"
	CredentialPurpose        = "purpose"
	CredentialExpectedUserID = "expectedUserId"
)

// PhoneStrategyName is the registry name of [PhoneLoginStrategy].
const PhoneStrategyName = "phone"

// Credentials is the loosely typed login payload handed to every strategy.
type Credentials map[string]string

// LoginStrategy is one named login method. Attempt returns false to abstain
// when creds are not meant for it, letting the next strategy try.
type LoginStrategy interface {
	Name() string
	Attempt(ctx context.Context, creds Credentials) (LoginResult, bool)
}

// LoginRegistry tries strategies in registration order. It is safe for
// concurrent use.
type LoginRegistry struct {
	mu         sync.RWMutex
	strategies []LoginStrategy
}

func NewLoginRegistry() *LoginRegistry {
	return &LoginRegistry{}
}

// Register appends strategy. Names must be non-empty and unique.
func (r *LoginRegistry) Register(strategy LoginStrategy) error {
	if strategy == nil {
		return errors.New("nil login strategy")
	}
	name := strategy.Name()
	if name == "" {
		return errors.New("login strategy name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.strategies {
		if s.Name() == name {
			return fmt.Errorf("login strategy %q already registered", name)
		}
	}
	r.strategies = append(r.strategies, strategy)
	return nil
}

// Names returns the registered strategy names in order.
func (r *LoginRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Login returns the result of the first strategy that does not abstain,
// or ErrNoLoginStrategy when all of them abstain.
func (r *LoginRegistry) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	r.mu.RLock()
	strategies := make([]LoginStrategy, len(r.strategies))
	copy(strategies, r.strategies)
	r.mu.RUnlock()

	for _, s := range strategies {
		result, handled := s.Attempt(ctx, creds)
		if !handled {
			continue
		}
		result.Strategy = s.Name()
		return result, nil
	}
	return LoginResult{}, ErrNoLoginStrategy
}

// Login dispatches creds through the engine's strategy registry.
func (e *Engine) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	if e == nil || e.logins == nil {
		return LoginResult{}, ErrEngineNotReady
	}
	return e.logins.Login(ctx, creds)
}

// PhoneLoginStrategy adapts [Engine.LoginWithPhone] to [LoginStrategy].
type PhoneLoginStrategy struct {
	engine *Engine
}

// NewPhoneLoginStrategy returns the phone strategy bound to engine, for use
// in registries other than the engine's own.
func NewPhoneLoginStrategy(engine *Engine) *PhoneLoginStrategy {
	return &PhoneLoginStrategy{engine: engine}
}

func (s *PhoneLoginStrategy) Name() string {
	return PhoneStrategyName
}

func (s *PhoneLoginStrategy) Attempt(ctx context.Context, creds Credentials) (LoginResult, bool) {
	return s.engine.LoginWithPhone(ctx, PhoneLoginRequest{
		Phone:          creds[CredentialPhone],
		OTP:            creds[CredentialOTP],
		Purpose:        creds[CredentialPurpose],
		ExpectedUserID: creds[CredentialExpectedUserID],
	})
}
