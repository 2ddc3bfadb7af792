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

package identity

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/churchstack/churchstack/internal/audit"
	"github.com/churchstack/churchstack/internal/authz"
	"github.com/churchstack/churchstack/internal/id"
	"github.com/churchstack/churchstack/internal/tenancy"
)

const (
	EnvBootstrapChurchName    = "CS_BOOTSTRAP_CHURCH_NAME"
	EnvBootstrapAdminEmail    = "CS_BOOTSTRAP_ADMIN_EMAIL"
	EnvBootstrapAdminPassword = "CS_BOOTSTRAP_ADMIN_PASSWORD"
)

// BootstrapService seeds the first church: the church record, its main
// branch, and the ADMINGERAL member linked to the admin identity. This is
// the only path that ever assigns ADMINGERAL; the policy facade refuses it
// everywhere else.
type BootstrapService struct {
	identityService *Service
	churches        tenancy.ChurchRepository
	branches        tenancy.BranchRepository
	members         tenancy.MemberRepository
	auditLogger     audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(
	identityService *Service,
	churches tenancy.ChurchRepository,
	branches tenancy.BranchRepository,
	members tenancy.MemberRepository,
	auditLogger audit.Logger,
) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		churches:        churches,
		branches:        branches,
		members:         members,
		auditLogger:     auditLogger,
	}
}

// Bootstrap reads the bootstrap configuration from the environment and
// executes it. Without CS_BOOTSTRAP_ADMIN_EMAIL it is a no-op; with an
// already-onboarded admin it skips silently.
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	email := os.Getenv(EnvBootstrapAdminEmail)
	if email == "" {
		return nil
	}
	churchName := os.Getenv(EnvBootstrapChurchName)
	if churchName == "" {
		return fmt.Errorf("%s is required when bootstrapping", EnvBootstrapChurchName)
	}

	// 1. Find or provision the admin identity.
	user, err := s.identityService.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return fmt.Errorf("failed to look up bootstrap user: %w", err)
		}
		user, err = s.identityService.ProvisionIdentity(ctx, email, churchName+" Admin")
		if err != nil {
			return fmt.Errorf("failed to provision bootstrap user: %w", err)
		}
		if password := os.Getenv(EnvBootstrapAdminPassword); password != "" {
			if err := s.identityService.AddPassword(ctx, user.ID, password); err != nil {
				return fmt.Errorf("failed to set bootstrap password: %w", err)
			}
		}
	}

	// 2. Skip if the identity already has a member record.
	if _, err := s.members.GetByUserID(ctx, user.ID); err == nil {
		return nil
	}

	// 3. Create church, main branch and the ADMINGERAL member.
	church := &tenancy.Church{
		ID:     id.NewUUIDv7(),
		Name:   churchName,
		Active: true,
	}
	if err := s.churches.Create(ctx, church); err != nil {
		return fmt.Errorf("failed to create church: %w", err)
	}

	branch := &tenancy.Branch{
		ID:           id.NewUUIDv7(),
		ChurchID:     church.ID,
		Name:         churchName,
		IsMainBranch: true,
	}
	if err := s.branches.Create(ctx, branch); err != nil {
		return fmt.Errorf("failed to create main branch: %w", err)
	}

	userID := user.ID
	member := &tenancy.Member{
		ID:       id.NewUUIDv7(),
		BranchID: branch.ID,
		UserID:   &userID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     authz.RoleAdminGeneral,
	}
	if err := s.members.Create(ctx, member, authz.NextPermissionSet(nil, authz.RoleAdminGeneral)); err != nil {
		return fmt.Errorf("failed to create admin member: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeChurchBootstrap,
		ChurchID:   church.ID,
		ActorID:    audit.ActorSystemBootstrap,
		EntityType: audit.EntityChurch,
		EntityID:   church.ID,
		Metadata: map[string]any{
			audit.AttrEmail:    email,
			audit.AttrBranchID: branch.ID,
		},
	})

	return nil
}
