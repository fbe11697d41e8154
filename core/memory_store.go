package core

import "context"

// Scope is the visibility tier of a Fact. The zero value is the global tier;
// a scope bound to an identity is created with ScopedTo.
type Scope struct {
	Owner string
}

// GlobalScope is the tier visible to every session.
var GlobalScope = Scope{}

// ScopedTo returns the tier owned by identity. An empty identity yields the
// global scope.
func ScopedTo(identity string) Scope { return Scope{Owner: identity} }

// IsGlobal reports whether the scope has no owner.
func (s Scope) IsGlobal() bool { return s.Owner == "" }

// String implements fmt.Stringer.
func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "user:" + s.Owner
}

// Fact is one persisted key/value pair. Within a scope keys are unique.
type Fact struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Scope Scope  `json:"-"`
}

// FactStore persists facts in two tiers. Put is an upsert; Delete reports
// whether a row was removed. List returns a point-in-time snapshot of one
// tier. Implementations must be safe for concurrent use.
type FactStore interface {
	Put(ctx context.Context, scope Scope, key, value string) error
	Delete(ctx context.Context, scope Scope, key string) (bool, error)
	List(ctx context.Context, scope Scope) ([]Fact, error)
}
