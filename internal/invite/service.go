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

package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/churchstack/churchstack/internal/audit"
	"github.com/churchstack/churchstack/internal/authz"
	"github.com/churchstack/churchstack/internal/billing"
	"github.com/churchstack/churchstack/internal/id"
	"github.com/churchstack/churchstack/internal/notify"
	"github.com/churchstack/churchstack/internal/tenancy"
)

const (
	tokenBytes    = 24 // 32 chars after base64url encoding
	tokenAttempts = 5
)

// QuotaChecker is the slice of the quota enforcer the invite lifecycle
// needs.
type QuotaChecker interface {
	CheckMemberQuota(ctx context.Context, churchID string) error
}

// Service drives the invite link lifecycle: creation, validation, atomic
// consumption and deactivation.
type Service struct {
	repo        Repository
	branches    tenancy.BranchRepository
	quota       QuotaChecker
	notifier    notify.Notifier
	auditLogger audit.Logger
}

// NewService creates a new invite link service
func NewService(repo Repository, branches tenancy.BranchRepository, quota QuotaChecker, notifier notify.Notifier, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		branches:    branches,
		quota:       quota,
		notifier:    notifier,
		auditLogger: auditLogger,
	}
}

// Create issues a new invite link for a branch. An invite link is creation
// by proxy, so the actor needs the same authority as creating a member in
// that branch, and the member quota is pre-checked.
func (s *Service) Create(ctx context.Context, actor *authz.Actor, branchID string, maxUses *int, expiresAt *time.Time) (*InviteLink, error) {
	branch, err := s.branches.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	if denied := authz.CanCreateMemberInBranch(actor, branch.ID, branch.ChurchID); denied != nil {
		return nil, denied
	}

	if err := s.quota.CheckMemberQuota(ctx, branch.ChurchID); err != nil {
		return nil, err
	}

	if maxUses != nil && *maxUses < 1 {
		return nil, ErrInvalidMaxUses
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, ErrExpiryInPast
	}

	token, err := s.generateUniqueToken(ctx)
	if err != nil {
		return nil, err
	}

	link := &InviteLink{
		ID:        id.NewUUIDv7(),
		BranchID:  branch.ID,
		Token:     token,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
		IsActive:  true,
		CreatedBy: actor.MemberID,
	}
	if err := s.repo.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create invite link: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeInviteCreated,
		ChurchID:   branch.ChurchID,
		ActorID:    actor.MemberID,
		EntityType: audit.EntityInviteLink,
		EntityID:   link.ID,
		Metadata:   map[string]any{audit.AttrBranchID: branch.ID},
	})

	return link, nil
}

// Validate checks whether the token still admits a registration. Checks run
// in a fixed order so callers get a stable reason: not_found, deactivated,
// expired, exhausted, then the owning church's member quota (a link can
// become unusable purely because the tenant later hit its plan limit).
func (s *Service) Validate(ctx context.Context, token string) (*InviteLink, error) {
	link, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return nil, &ValidationError{Reason: ReasonNotFound}
		}
		return nil, fmt.Errorf("failed to load invite link: %w", err)
	}

	switch link.StateAt(time.Now()) {
	case StateDeactivated:
		return nil, &ValidationError{Reason: ReasonDeactivated}
	case StateExpired:
		return nil, &ValidationError{Reason: ReasonExpired}
	case StateExhausted:
		return nil, &ValidationError{Reason: ReasonExhausted}
	}

	branch, err := s.branches.GetByID(ctx, link.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load branch %s: %w", link.BranchID, err)
	}

	if err := s.quota.CheckMemberQuota(ctx, branch.ChurchID); err != nil {
		var qe *billing.QuotaError
		if errors.As(err, &qe) {
			// Best effort: tell the admins their link is dead in the water.
			if nerr := s.notifier.MemberQuotaReached(ctx, branch.ChurchID, qe.Current, qe.Max); nerr != nil {
				slog.WarnContext(ctx, "quota notification failed", "error", nerr, "church_id", branch.ChurchID)
			}
			return nil, &ValidationError{Reason: ReasonLimitReached}
		}
		return nil, err
	}

	return link, nil
}

// Consume validates the token and, only if still valid, increments its use
// count by exactly one. The increment is a conditional update in the
// repository, not a read-modify-write: when two consumers race for the
// last remaining use, exactly one succeeds and the other observes
// exhausted.
func (s *Service) Consume(ctx context.Context, token string) (*InviteLink, error) {
	if _, err := s.Validate(ctx, token); err != nil {
		return nil, err
	}

	link, err := s.repo.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNoUsesLeft) {
			// Lost the race between validate and the conditional update.
			return nil, s.raceReason(ctx, token)
		}
		if errors.Is(err, ErrLinkNotFound) {
			return nil, &ValidationError{Reason: ReasonNotFound}
		}
		return nil, fmt.Errorf("failed to consume invite link: %w", err)
	}

	branch, berr := s.branches.GetByID(ctx, link.BranchID)
	churchID := ""
	if berr == nil {
		churchID = branch.ChurchID
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeInviteConsumed,
		ChurchID:   churchID,
		EntityType: audit.EntityInviteLink,
		EntityID:   link.ID,
		Metadata:   map[string]any{"current_uses": link.CurrentUses},
	})

	return link, nil
}

// raceReason re-reads the link after a failed conditional update to report
// the precise reason it became unusable. Exhaustion is the default: that is
// what the loser of a last-use race observes.
func (s *Service) raceReason(ctx context.Context, token string) error {
	link, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return &ValidationError{Reason: ReasonNotFound}
	}
	switch link.StateAt(time.Now()) {
	case StateDeactivated:
		return &ValidationError{Reason: ReasonDeactivated}
	case StateExpired:
		return &ValidationError{Reason: ReasonExpired}
	default:
		return &ValidationError{Reason: ReasonExhausted}
	}
}

// Deactivate turns a link off. Allowed for its creator, or for an actor
// with admin privilege or members_manage within the same church as the
// link's branch.
func (s *Service) Deactivate(ctx context.Context, actor *authz.Actor, linkID string) error {
	link, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return err
	}

	if actor.MemberID != link.CreatedBy {
		branch, err := s.branches.GetByID(ctx, link.BranchID)
		if err != nil {
			return fmt.Errorf("failed to load branch %s: %w", link.BranchID, err)
		}
		if branch.ChurchID != actor.ChurchID {
			return &authz.Denied{Code: authz.DenyTenantMismatch, Reason: "invite link belongs to another church"}
		}
		if !authz.IsImplicitlyPrivileged(actor.Role) && !actor.HasPermission(authz.PermMembersManage) {
			return &authz.Denied{Code: authz.DenyInsufficientPermission, Reason: "missing permission: " + authz.PermMembersManage}
		}
	}

	if err := s.repo.Deactivate(ctx, linkID); err != nil {
		return fmt.Errorf("failed to deactivate invite link: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeInviteDeactivated,
		ChurchID:   actor.ChurchID,
		ActorID:    actor.MemberID,
		EntityType: audit.EntityInviteLink,
		EntityID:   linkID,
	})

	return nil
}

// generateUniqueToken draws a cryptographically random token and retries
// against the token index on collision. Tokens carry no tenant or branch
// information, so links cannot be enumerated.
func (s *Service) generateUniqueToken(ctx context.Context) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		buf := make([]byte, tokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		token := base64.RawURLEncoding.EncodeToString(buf)

		taken, err := s.repo.TokenExists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}
		if !taken {
			return token, nil
		}
	}
	return "", ErrTokenGeneration
}
