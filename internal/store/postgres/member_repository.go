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
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/churchstack/churchstack/internal/authz"
	"github.com/churchstack/churchstack/internal/id"
	"github.com/churchstack/churchstack/internal/tenancy"
)

// MemberRepository implements tenancy.MemberRepository
type MemberRepository struct {
	db *DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create persists a member and its initial permission rows in one
// transaction.
func (r *MemberRepository) Create(ctx context.Context, member *tenancy.Member, permissions []string) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	_, err = tx.Exec(ctx, `
		INSERT INTO members (id, branch_id, user_id, name, email, role, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, member.ID, member.BranchID, member.UserID, member.Name, nullString(member.Email), string(member.Role), nullString(member.Position), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}

	if err := insertPermissions(ctx, tx, member.ID, permissions, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	member.CreatedAt = now
	member.UpdatedAt = now

	return nil
}

// GetByID retrieves a member by ID
func (r *MemberRepository) GetByID(ctx context.Context, memberID string) (*tenancy.Member, error) {
	member, err := r.scanMember(r.db.pool.QueryRow(ctx, `
		SELECT id, branch_id, user_id, name, email, role, position, created_at, updated_at
		FROM members
		WHERE id = $1
	`, memberID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenancy.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// GetByUserID resolves the member linked to an authentication identity.
func (r *MemberRepository) GetByUserID(ctx context.Context, userID string) (*tenancy.Member, error) {
	member, err := r.scanMember(r.db.pool.QueryRow(ctx, `
		SELECT id, branch_id, user_id, name, email, role, position, created_at, updated_at
		FROM members
		WHERE user_id = $1
	`, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenancy.ErrActorNotFound
		}
		return nil, fmt.Errorf("failed to get member by user: %w", err)
	}

	return member, nil
}

// GetPermissions returns the member's permission types
func (r *MemberRepository) GetPermissions(ctx context.Context, memberID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT type
		FROM permissions
		WHERE member_id = $1
		ORDER BY type
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions: %w", err)
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var permType string
		if err := rows.Scan(&permType); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, permType)
	}

	return permissions, rows.Err()
}

// ReplacePermissions swaps the member's permission set, and optionally its
// role, inside a single transaction so readers never see a partial set.
func (r *MemberRepository) ReplacePermissions(ctx context.Context, memberID string, newRole *authz.Role, permissions []string) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	if newRole != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE members SET role = $1, updated_at = $2 WHERE id = $3
		`, string(*newRole), now, memberID)
		if err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return tenancy.ErrMemberNotFound
		}
	}

	_, err = tx.Exec(ctx, `DELETE FROM permissions WHERE member_id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("failed to clear permissions: %w", err)
	}

	if err := insertPermissions(ctx, tx, memberID, permissions, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update updates a member's mutable profile fields
func (r *MemberRepository) Update(ctx context.Context, member *tenancy.Member) error {
	now := time.Now()
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE members
		SET name = $1, email = $2, position = $3, user_id = $4, updated_at = $5
		WHERE id = $6
	`, member.Name, nullString(member.Email), nullString(member.Position), member.UserID, now, member.ID)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrMemberNotFound
	}

	member.UpdatedAt = now

	return nil
}

func (r *MemberRepository) scanMember(row pgx.Row) (*tenancy.Member, error) {
	var member tenancy.Member
	var role string
	var email, position sql.NullString
	err := row.Scan(&member.ID, &member.BranchID, &member.UserID, &member.Name, &email, &role, &position, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return nil, err
	}

	member.Role = authz.Role(role)
	member.Email = email.String
	member.Position = position.String

	return &member, nil
}

func insertPermissions(ctx context.Context, tx pgx.Tx, memberID string, permissions []string, now time.Time) error {
	for _, permType := range permissions {
		_, err := tx.Exec(ctx, `
			INSERT INTO permissions (id, member_id, type, created_at)
			VALUES ($1, $2, $3, $4)
		`, id.NewUUIDv7(), memberID, permType, now)
		if err != nil {
			return fmt.Errorf("failed to insert permission %s: %w", permType, err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
