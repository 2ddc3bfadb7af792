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

	"github.com/jackc/pgx/v5"
	"github.com/churchstack/churchstack/internal/billing"
)

// BillingRepository implements billing.Repository
type BillingRepository struct {
	db *DB
}

// NewBillingRepository creates a new billing repository
func NewBillingRepository(db *DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// GetActivePlanByChurch resolves the church's plan through the general
// administrator's active subscription. The owner is the ADMINGERAL member
// whose identity holds the subscription.
func (r *BillingRepository) GetActivePlanByChurch(ctx context.Context, churchID string) (*billing.Plan, error) {
	var plan billing.Plan
	err := r.db.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.max_members, p.max_branches, p.created_at
		FROM plans p
		JOIN subscriptions s ON s.plan_id = p.id AND s.active = true
		JOIN members m ON m.user_id = s.user_id AND m.role = 'ADMINGERAL'
		JOIN branches b ON b.id = m.branch_id
		WHERE b.church_id = $1
		ORDER BY s.started_at DESC
		LIMIT 1
	`, churchID).Scan(&plan.ID, &plan.Name, &plan.MaxMembers, &plan.MaxBranches, &plan.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get church plan: %w", err)
	}

	return &plan, nil
}

// GetChurchUsage aggregates member and branch counts across the church
func (r *BillingRepository) GetChurchUsage(ctx context.Context, churchID string) (*billing.Usage, error) {
	var usage billing.Usage
	err := r.db.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM members m JOIN branches b ON b.id = m.branch_id WHERE b.church_id = $1),
			(SELECT COUNT(*) FROM branches WHERE church_id = $1)
	`, churchID).Scan(&usage.Members, &usage.Branches)
	if err != nil {
		return nil, fmt.Errorf("failed to get church usage: %w", err)
	}

	return &usage, nil
}
