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

package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/churchstack/churchstack/internal/authz"
)

// Resolver maps an authenticated identity to its member record and its
// branch/church ancestry. The resulting Actor is the sole tenancy input
// trusted by the rest of the policy engine.
type Resolver struct {
	members  MemberRepository
	branches BranchRepository
}

// NewResolver creates a new tenant resolver
func NewResolver(members MemberRepository, branches BranchRepository) *Resolver {
	return &Resolver{members: members, branches: branches}
}

// ResolveActor resolves the member linked to userID and loads its ancestry.
// Returns ErrActorNotFound when the identity has no member record yet, for
// example a billing-only identity that has not completed onboarding.
func (r *Resolver) ResolveActor(ctx context.Context, userID string) (*authz.Actor, error) {
	member, err := r.members.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrActorNotFound) || errors.Is(err, ErrMemberNotFound) {
			return nil, ErrActorNotFound
		}
		return nil, fmt.Errorf("failed to resolve member: %w", err)
	}

	branch, err := r.branches.GetByID(ctx, member.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load branch %s: %w", member.BranchID, err)
	}

	permissions, err := r.members.GetPermissions(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}

	return &authz.Actor{
		MemberID:    member.ID,
		UserID:      userID,
		Role:        member.Role,
		BranchID:    branch.ID,
		ChurchID:    branch.ChurchID,
		Permissions: permissions,
	}, nil
}
