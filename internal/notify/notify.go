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

package notify

import (
	"context"
	"log/slog"
)

// Notifier is the best-effort channel for tenant-facing notices. Failures
// are logged by callers and never propagated to the primary operation.
type Notifier interface {
	// MemberQuotaReached tells the church's admins that an invite link is
	// still being offered while the plan's member limit is already hit.
	MemberQuotaReached(ctx context.Context, churchID string, current, max int) error
}

// SlogNotifier implements Notifier by logging the notice. Outbound email
// delivery hangs off the same interface in deployments that wire it.
type SlogNotifier struct{}

// NewSlogNotifier creates a new slog-backed notifier
func NewSlogNotifier() *SlogNotifier {
	return &SlogNotifier{}
}

// MemberQuotaReached logs the quota notice
func (n *SlogNotifier) MemberQuotaReached(ctx context.Context, churchID string, current, max int) error {
	slog.WarnContext(ctx, "member quota reached while invite link active",
		slog.String("church_id", churchID),
		slog.Int("current", current),
		slog.Int("max", max),
		slog.String("component", "notify"),
	)
	return nil
}
