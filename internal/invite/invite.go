package invite

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrLinkNotFound    = errors.New("invite link not found")
	ErrNoUsesLeft      = errors.New("invite link has no uses left")
	ErrTokenGeneration = errors.New("failed to generate a unique invite token")
	ErrInvalidMaxUses  = errors.New("max uses must be at least 1")
	ErrExpiryInPast    = errors.New("expiry must be in the future")
)

// State of an invite link. Only DEACTIVATED is persisted (is_active =
// false); the other states are derived from stored fields at validation
// time.
type State string

const (
	StateActive      State = "ACTIVE"
	StateExpired     State = "EXPIRED"
	StateExhausted   State = "EXHAUSTED"
	StateDeactivated State = "DEACTIVATED"
)

// Reason codes for an invalid link, in validation order.
type Reason string

const (
	ReasonNotFound     Reason = "not_found"
	ReasonDeactivated  Reason = "deactivated"
	ReasonExpired      Reason = "expired"
	ReasonExhausted    Reason = "exhausted"
	ReasonLimitReached Reason = "limit_reached"
)

// ValidationError reports why a link cannot be used.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return "invite link invalid: " + string(e.Reason)
}

// InviteLink is a self-service onboarding token scoped to one branch.
// Links are never deleted, only deactivated or exhausted.
type InviteLink struct {
	ID          string     `json:"id"`
	BranchID    string     `json:"branch_id"`
	Token       string     `json:"token"`
	MaxUses     *int       `json:"max_uses,omitempty"`
	CurrentUses int        `json:"current_uses"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StateAt derives the link's state at the given instant.
func (l *InviteLink) StateAt(now time.Time) State {
	if !l.IsActive {
		return StateDeactivated
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return StateExpired
	}
	if l.MaxUses != nil && l.CurrentUses >= *l.MaxUses {
		return StateExhausted
	}
	return StateActive
}

// Repository defines the interface for invite link storage.
type Repository interface {
	Create(ctx context.Context, link *InviteLink) error
	GetByID(ctx context.Context, id string) (*InviteLink, error)
	GetByToken(ctx context.Context, token string) (*InviteLink, error)
	TokenExists(ctx context.Context, token string) (bool, error)

	// Consume increments current_uses by exactly one iff the link is still
	// active, unexpired and has uses left, as a single conditional update.
	// The affected-row count is the success signal; a losing racer gets
	// ErrNoUsesLeft, never a double increment.
	Consume(ctx context.Context, token string) (*InviteLink, error)

	Deactivate(ctx context.Context, id string) error
}
