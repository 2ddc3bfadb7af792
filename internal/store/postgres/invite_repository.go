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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/churchstack/churchstack/internal/invite"
)

// InviteRepository implements invite.Repository
type InviteRepository struct {
	db *DB
}

// NewInviteRepository creates a new invite link repository
func NewInviteRepository(db *DB) *InviteRepository {
	return &InviteRepository{db: db}
}

// Create creates a new invite link
func (r *InviteRepository) Create(ctx context.Context, link *invite.InviteLink) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO invite_links (id, branch_id, token, max_uses, current_uses, expires_at, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, link.ID, link.BranchID, link.Token, link.MaxUses, link.CurrentUses, link.ExpiresAt, link.IsActive, link.CreatedBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert invite link: %w", err)
	}

	link.CreatedAt = now
	link.UpdatedAt = now

	return nil
}

// GetByID retrieves an invite link by ID
func (r *InviteRepository) GetByID(ctx context.Context, linkID string) (*invite.InviteLink, error) {
	link, err := scanInviteLink(r.db.pool.QueryRow(ctx, inviteSelect+`WHERE id = $1`, linkID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, invite.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get invite link: %w", err)
	}

	return link, nil
}

// GetByToken retrieves an invite link by its token
func (r *InviteRepository) GetByToken(ctx context.Context, token string) (*invite.InviteLink, error) {
	link, err := scanInviteLink(r.db.pool.QueryRow(ctx, inviteSelect+`WHERE token = $1`, token))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, invite.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get invite link by token: %w", err)
	}

	return link, nil
}

// TokenExists reports whether a token is already in use
func (r *InviteRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM invite_links WHERE token = $1)
	`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}

	return exists, nil
}

// Consume increments current_uses by one in a single conditional update.
// The WHERE clause re-checks activity, expiry and remaining uses, so two
// racers on the last use cannot both succeed. Zero affected rows maps to
// ErrNoUsesLeft when the link exists and ErrLinkNotFound otherwise.
func (r *InviteRepository) Consume(ctx context.Context, token string) (*invite.InviteLink, error) {
	link, err := scanInviteLink(r.db.pool.QueryRow(ctx, `
		UPDATE invite_links
		SET current_uses = current_uses + 1, updated_at = now()
		WHERE token = $1
		  AND is_active = true
		  AND (expires_at IS NULL OR expires_at > now())
		  AND (max_uses IS NULL OR current_uses < max_uses)
		RETURNING id, branch_id, token, max_uses, current_uses, expires_at, is_active, created_by, created_at, updated_at
	`, token))
	if err != nil {
		if err == pgx.ErrNoRows {
			exists, existsErr := r.TokenExists(ctx, token)
			if existsErr != nil {
				return nil, existsErr
			}
			if !exists {
				return nil, invite.ErrLinkNotFound
			}
			return nil, invite.ErrNoUsesLeft
		}
		return nil, fmt.Errorf("failed to consume invite link: %w", err)
	}

	return link, nil
}

// Deactivate marks an invite link inactive. Idempotent.
func (r *InviteRepository) Deactivate(ctx context.Context, linkID string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE invite_links SET is_active = false, updated_at = now() WHERE id = $1
	`, linkID)
	if err != nil {
		return fmt.Errorf("failed to deactivate invite link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return invite.ErrLinkNotFound
	}

	return nil
}

const inviteSelect = `
	SELECT id, branch_id, token, max_uses, current_uses, expires_at, is_active, created_by, created_at, updated_at
	FROM invite_links
`

func scanInviteLink(row pgx.Row) (*invite.InviteLink, error) {
	var link invite.InviteLink
	err := row.Scan(&link.ID, &link.BranchID, &link.Token, &link.MaxUses, &link.CurrentUses,
		&link.ExpiresAt, &link.IsActive, &link.CreatedBy, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &link, nil
}
