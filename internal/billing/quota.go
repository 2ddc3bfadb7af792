// Copyright 2026 The ChurchStack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package billing

import (
	"context"
	"errors"
	"fmt"
)

// Resource names used in quota errors.
const (
	ResourceMembers  = "members"
	ResourceBranches = "branches"
)

// QuotaError reports that a plan limit would be exceeded by adding one
// more resource.
type QuotaError struct {
	Resource string
	Current  int
	Max      int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d of %d used", e.Resource, e.Current, e.Max)
}

// Enforcer compares a church's current resource counts against its active
// plan. The check answers "can I add one more", so it trips at equality,
// not only above the limit.
//
// The check-then-insert sequence around it is inherently racy: two
// concurrent creations can both pass. That window is accepted as a
// documented limitation; quota is advisory and reconciled out of band, not
// a hard guarantee.
type Enforcer struct {
	repo Repository
}

// NewEnforcer creates a new quota enforcer
func NewEnforcer(repo Repository) *Enforcer {
	return &Enforcer{repo: repo}
}

// CheckMemberQuota returns a *QuotaError when the church is at or over its
// plan's member limit, nil when one more member may be added. A church
// without an active subscription, or a plan without a member limit, is
// unlimited.
func (e *Enforcer) CheckMemberQuota(ctx context.Context, churchID string) error {
	plan, err := e.repo.GetActivePlanByChurch(ctx, churchID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to resolve plan: %w", err)
	}
	if plan.MaxMembers == nil {
		return nil
	}

	usage, err := e.repo.GetChurchUsage(ctx, churchID)
	if err != nil {
		return fmt.Errorf("failed to load church usage: %w", err)
	}

	if usage.Members >= *plan.MaxMembers {
		return &QuotaError{Resource: ResourceMembers, Current: usage.Members, Max: *plan.MaxMembers}
	}
	return nil
}

// CheckBranchQuota is the branch-count counterpart of CheckMemberQuota.
func (e *Enforcer) CheckBranchQuota(ctx context.Context, churchID string) error {
	plan, err := e.repo.GetActivePlanByChurch(ctx, churchID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to resolve plan: %w", err)
	}
	if plan.MaxBranches == nil {
		return nil
	}

	usage, err := e.repo.GetChurchUsage(ctx, churchID)
	if err != nil {
		return fmt.Errorf("failed to load church usage: %w", err)
	}

	if usage.Branches >= *plan.MaxBranches {
		return &QuotaError{Resource: ResourceBranches, Current: usage.Branches, Max: *plan.MaxBranches}
	}
	return nil
}
