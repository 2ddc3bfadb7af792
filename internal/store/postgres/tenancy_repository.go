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
	"github.com/churchstack/churchstack/internal/tenancy"
)

// ChurchRepository implements tenancy.ChurchRepository
type ChurchRepository struct {
	db *DB
}

// NewChurchRepository creates a new church repository
func NewChurchRepository(db *DB) *ChurchRepository {
	return &ChurchRepository{db: db}
}

// Create creates a new church
func (r *ChurchRepository) Create(ctx context.Context, church *tenancy.Church) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO churches (id, name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, church.ID, church.Name, church.Active, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert church: %w", err)
	}

	church.CreatedAt = now
	church.UpdatedAt = now

	return nil
}

// GetByID retrieves a church by ID
func (r *ChurchRepository) GetByID(ctx context.Context, id string) (*tenancy.Church, error) {
	var church tenancy.Church
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, active, created_at, updated_at
		FROM churches
		WHERE id = $1
	`, id).Scan(&church.ID, &church.Name, &church.Active, &church.CreatedAt, &church.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenancy.ErrChurchNotFound
		}
		return nil, fmt.Errorf("failed to get church: %w", err)
	}

	return &church, nil
}

// BranchRepository implements tenancy.BranchRepository
type BranchRepository struct {
	db *DB
}

// NewBranchRepository creates a new branch repository
func NewBranchRepository(db *DB) *BranchRepository {
	return &BranchRepository{db: db}
}

// Create creates a new branch. church_id is immutable after this insert;
// no update path exists for it.
func (r *BranchRepository) Create(ctx context.Context, branch *tenancy.Branch) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO branches (id, church_id, name, is_main_branch, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, branch.ID, branch.ChurchID, branch.Name, branch.IsMainBranch, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert branch: %w", err)
	}

	branch.CreatedAt = now
	branch.UpdatedAt = now

	return nil
}

// GetByID retrieves a branch by ID
func (r *BranchRepository) GetByID(ctx context.Context, id string) (*tenancy.Branch, error) {
	var branch tenancy.Branch
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, church_id, name, is_main_branch, created_at, updated_at
		FROM branches
		WHERE id = $1
	`, id).Scan(&branch.ID, &branch.ChurchID, &branch.Name, &branch.IsMainBranch, &branch.CreatedAt, &branch.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenancy.ErrBranchNotFound
		}
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}

	return &branch, nil
}

// ListByChurch retrieves all branches of a church
func (r *BranchRepository) ListByChurch(ctx context.Context, churchID string) ([]*tenancy.Branch, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, church_id, name, is_main_branch, created_at, updated_at
		FROM branches
		WHERE church_id = $1
		ORDER BY created_at
	`, churchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var branches []*tenancy.Branch
	for rows.Next() {
		var branch tenancy.Branch
		if err := rows.Scan(&branch.ID, &branch.ChurchID, &branch.Name, &branch.IsMainBranch, &branch.CreatedAt, &branch.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, &branch)
	}

	return branches, rows.Err()
}
