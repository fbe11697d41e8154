package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/logging"
)

// Key prefixes disambiguating the tiers in GetAll.
const (
	GlobalPrefix = "GLOBAL_"
	UserPrefix   = "USER_"
)

// DeletePolicy decides which tiers an identity-bound delete may touch.
type DeletePolicy int

const (
	// ScopedThenGlobal deletes the identity's fact and, only when none was
	// removed, falls through to the global fact with the same key.
	ScopedThenGlobal DeletePolicy = iota
	// ScopedOnly never lets an identity remove a global fact.
	ScopedOnly
)

// String implements fmt.Stringer.
func (p DeletePolicy) String() string {
	switch p {
	case ScopedOnly:
		return "scoped_only"
	default:
		return "scoped_then_global"
	}
}

// ParseDeletePolicy maps a configuration value onto a DeletePolicy.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scoped_then_global":
		return ScopedThenGlobal, nil
	case "scoped_only":
		return ScopedOnly, nil
	default:
		return ScopedThenGlobal, fmt.Errorf("unknown delete policy %q", s)
	}
}

// ErrInvalidFact is returned by Save for an empty key or value.
var ErrInvalidFact = errors.New("fact key and value are required")

// Options configures a Service.
type Options struct {
	// Store persists the facts. Defaults to an InMemoryStore.
	Store core.FactStore
	// DeletePolicy defaults to ScopedThenGlobal.
	DeletePolicy DeletePolicy
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Service is the scoped memory layer used by orchestrators and tools. Backend
// failures are logged and returned; they never panic or abort the caller.
type Service struct {
	store  core.FactStore
	policy DeletePolicy
	logger logging.Logger
}

// NewService constructs a Service with optional overrides.
func NewService(optFns ...func(o *Options)) *Service {
	opts := Options{
		Store:        NewInMemoryStore(),
		DeletePolicy: ScopedThenGlobal,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{store: opts.Store, policy: opts.DeletePolicy, logger: logging.OrNoOp(opts.Logger)}
}

// Policy returns the configured delete policy.
func (s *Service) Policy() DeletePolicy { return s.policy }

// Save upserts key in scope. Writing an existing key overwrites its value.
func (s *Service) Save(ctx context.Context, key, value string, scope core.Scope) (bool, error) {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
		return false, ErrInvalidFact
	}
	if err := s.store.Put(ctx, scope, key, value); err != nil {
		s.logger.Error("memory.save.failed", "key", key, "scope", scope.String(), "error", err.Error())
		return false, fmt.Errorf("save fact %q: %w", key, err)
	}
	s.logger.Info("memory.save", "key", key, "scope", scope.String())
	return true, nil
}

// Delete removes key for identity following the configured policy. An empty
// identity targets the global tier. It reports whether anything was removed.
func (s *Service) Delete(ctx context.Context, key, identity string) (bool, error) {
	if identity != "" {
		removed, err := s.store.Delete(ctx, core.ScopedTo(identity), key)
		if err != nil {
			s.logger.Error("memory.delete.failed", "key", key, "scope", "user", "error", err.Error())
			return false, fmt.Errorf("delete fact %q: %w", key, err)
		}
		if removed {
			s.logger.Info("memory.delete", "key", key, "scope", "user")
			return true, nil
		}
		if s.policy == ScopedOnly {
			return false, nil
		}
	}
	removed, err := s.store.Delete(ctx, core.GlobalScope, key)
	if err != nil {
		s.logger.Error("memory.delete.failed", "key", key, "scope", "global", "error", err.Error())
		return false, fmt.Errorf("delete fact %q: %w", key, err)
	}
	if removed {
		s.logger.Info("memory.delete", "key", key, "scope", "global")
	}
	return removed, nil
}

// GetAll returns every global fact plus identity's scoped facts, keys
// prefixed with GlobalPrefix or UserPrefix. On failure the facts read so far
// are returned along with the error.
func (s *Service) GetAll(ctx context.Context, identity string) (map[string]string, error) {
	out := map[string]string{}
	global, err := s.store.List(ctx, core.GlobalScope)
	if err != nil {
		s.logger.Error("memory.list.failed", "scope", "global", "error", err.Error())
		return out, fmt.Errorf("list global facts: %w", err)
	}
	for _, f := range global {
		out[GlobalPrefix+f.Key] = f.Value
	}
	if identity == "" {
		return out, nil
	}
	scoped, err := s.store.List(ctx, core.ScopedTo(identity))
	if err != nil {
		s.logger.Error("memory.list.failed", "scope", "user", "error", err.Error())
		return out, fmt.Errorf("list scoped facts: %w", err)
	}
	for _, f := range scoped {
		out[UserPrefix+f.Key] = f.Value
	}
	return out, nil
}
