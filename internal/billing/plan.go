package billing

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("no active subscription")
)

// Plan defines the resource limits sold to a tenant. A nil limit means
// unlimited.
type Plan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MaxMembers  *int      `json:"max_members,omitempty"`
	MaxBranches *int      `json:"max_branches,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subscription links a tenant-owning identity to exactly one active plan.
type Subscription struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	PlanID    string     `json:"plan_id"`
	Active    bool       `json:"active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Usage is a church's current resource counts, aggregated across all of
// its branches.
type Usage struct {
	Members  int
	Branches int
}

// Repository defines the persistence interface the quota enforcer needs.
type Repository interface {
	// GetActivePlanByChurch resolves the church owner's active
	// subscription to its plan. Returns ErrSubscriptionNotFound when the
	// church has no active subscription.
	GetActivePlanByChurch(ctx context.Context, churchID string) (*Plan, error)

	// GetChurchUsage aggregates member and branch counts over every
	// branch of the church.
	GetChurchUsage(ctx context.Context, churchID string) (*Usage, error)
}
