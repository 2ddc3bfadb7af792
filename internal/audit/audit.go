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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeMemberCreated     = "member_created"
	TypeRoleChanged       = "role_changed"
	TypePermissionsSet    = "permissions_set"
	TypeBranchCreated     = "branch_created"
	TypeChurchBootstrap   = "church_bootstrap"
	TypeInviteCreated     = "invite_created"
	TypeInviteConsumed    = "invite_consumed"
	TypeInviteDeactivated = "invite_deactivated"
	TypeQuotaDenied       = "quota_denied"
	TypeAccessDenied      = "access_denied"
	TypeLoginSuccess      = "login_success"
	TypeLoginFailed       = "login_failed"
	TypeUserLocked        = "user_locked"
)

// Entity types recorded on events
const (
	EntityMember     = "member"
	EntityBranch     = "branch"
	EntityChurch     = "church"
	EntityInviteLink = "invite_link"
	EntityUser       = "user"
)

// Well-known metadata keys
const (
	AttrReason   = "reason"
	AttrRole     = "role"
	AttrOldRole  = "old_role"
	AttrNewRole  = "new_role"
	AttrBranchID = "branch_id"
	AttrEmail    = "email"
	AttrAttempts = "attempts"
)

// ActorSystemBootstrap identifies the seeding path as the acting principal.
const ActorSystemBootstrap = "system:bootstrap"

// Event represents an auditable action
type Event struct {
	Type       string
	ChurchID   string
	ActorID    string
	EntityType string
	EntityID   string
	Metadata   map[string]any
	Timestamp  time.Time
	IPAddress  string
	UserAgent  string
}

// Logger defines the interface for audit logging.
// Implementations must be fire-and-forget: emission never blocks or fails
// the operation being audited.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	// Ensure timestamp is set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("church_id", event.ChurchID),
		slog.String("actor_id", event.ActorID),
		slog.String("entity_type", event.EntityType),
		slog.String("entity_id", event.EntityID),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	// Flatten metadata
	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	lower := strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "hash", "credential", "authorization"}
	for _, s := range secrets {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
