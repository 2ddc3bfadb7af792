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

package http

import (
	"log/slog"
	"net/http"

	"github.com/churchstack/churchstack/internal/invite"
	"github.com/churchstack/churchstack/internal/observability/logger"
	"github.com/churchstack/churchstack/internal/policy"
)

// policyError records the denial on the meter and writes the mapped
// response.
func (h *Handler) policyError(w http.ResponseWriter, r *http.Request, err error) {
	if pe := policy.AsError(err); pe != nil {
		h.meter.RecordDenial(r.Context(), string(pe.Kind))
	}
	respondPolicyError(w, r, err)
}

// respondPolicyError maps a policy error to its HTTP status. This is the
// only place error kinds meet status codes; handlers never match on
// message strings.
func respondPolicyError(w http.ResponseWriter, r *http.Request, err error) {
	pe := policy.AsError(err)
	if pe == nil {
		slog.ErrorContext(r.Context(), "unhandled policy failure", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch pe.Kind {
	case policy.KindActorNotFound, policy.KindNotFound:
		status = http.StatusNotFound
	case policy.KindTenantMismatch,
		policy.KindRoleHierarchyViolation,
		policy.KindInsufficientPermission:
		status = http.StatusForbidden
	case policy.KindQuotaExceeded:
		status = http.StatusConflict
	case policy.KindInviteLinkInvalid:
		status = inviteStatus(pe.Reason)
	case policy.KindInvalidInput:
		status = http.StatusBadRequest
	}

	respondJSON(w, status, map[string]string{
		"error": pe.Message,
		"kind":  string(pe.Kind),
	})
}

// inviteStatus maps an invite reason code to a status. An unusable but
// existing link is Gone; a link that was never there is Not Found; losing
// the last slot to a paying limit is Conflict.
func inviteStatus(reason string) int {
	switch invite.Reason(reason) {
	case invite.ReasonNotFound:
		return http.StatusNotFound
	case invite.ReasonLimitReached:
		return http.StatusConflict
	case invite.ReasonDeactivated, invite.ReasonExpired, invite.ReasonExhausted:
		return http.StatusGone
	}
	return http.StatusGone
}
