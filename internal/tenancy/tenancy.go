package tenancy

import (
	"context"
	"errors"
	"time"

	"github.com/churchstack/churchstack/internal/authz"
)

// Domain errors
var (
	ErrActorNotFound  = errors.New("actor has no member record")
	ErrChurchNotFound = errors.New("church not found")
	ErrBranchNotFound = errors.New("branch not found")
	ErrMemberNotFound = errors.New("member not found")
)

// Church is the tenant root. Every branch and member hangs off exactly one
// church.
type Church struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Branch belongs to exactly one church. ChurchID is immutable after
// creation. Exactly one branch per church carries IsMainBranch.
type Branch struct {
	ID           string    `json:"id"`
	ChurchID     string    `json:"church_id"`
	Name         string    `json:"name"`
	IsMainBranch bool      `json:"is_main_branch"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Member belongs to exactly one branch and optionally links to an
// authentication identity through UserID.
type Member struct {
	ID        string     `json:"id"`
	BranchID  string     `json:"branch_id"`
	UserID    *string    `json:"user_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Role      authz.Role `json:"role"`
	Position  string     `json:"position,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Permission is one (member, type) grant row.
type Permission struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// ChurchRepository defines the interface for church storage
type ChurchRepository interface {
	Create(ctx context.Context, church *Church) error
	GetByID(ctx context.Context, id string) (*Church, error)
}

// BranchRepository defines the interface for branch storage
type BranchRepository interface {
	Create(ctx context.Context, branch *Branch) error
	GetByID(ctx context.Context, id string) (*Branch, error)
	ListByChurch(ctx context.Context, churchID string) ([]*Branch, error)
}

// MemberRepository defines the interface for member storage
type MemberRepository interface {
	// Create persists a member together with its initial permission rows
	// in a single transaction.
	Create(ctx context.Context, member *Member, permissions []string) error

	GetByID(ctx context.Context, id string) (*Member, error)

	// GetByUserID resolves the member linked to an authentication identity.
	// Returns ErrActorNotFound if the identity has no member yet.
	GetByUserID(ctx context.Context, userID string) (*Member, error)

	// GetPermissions returns the member's permission types.
	GetPermissions(ctx context.Context, memberID string) ([]string, error)

	// ReplacePermissions atomically replaces the member's permission rows
	// and, when newRole is non-nil, its role, in one transaction. No
	// concurrent reader ever observes a partial set.
	ReplacePermissions(ctx context.Context, memberID string, newRole *authz.Role, permissions []string) error

	Update(ctx context.Context, member *Member) error
}
