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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/churchstack/churchstack/internal/invite"
	"github.com/churchstack/churchstack/internal/policy"
)

// TestPurpose: Validates the single error-kind to status-code mapping so
// that no handler invents its own status semantics.
// Scope: Unit Test
func TestRespondPolicyError_KindMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"actor not found", &policy.Error{Kind: policy.KindActorNotFound, Message: "x"}, http.StatusNotFound},
		{"not found", &policy.Error{Kind: policy.KindNotFound, Message: "x"}, http.StatusNotFound},
		{"tenant mismatch", &policy.Error{Kind: policy.KindTenantMismatch, Message: "x"}, http.StatusForbidden},
		{"role hierarchy", &policy.Error{Kind: policy.KindRoleHierarchyViolation, Message: "x"}, http.StatusForbidden},
		{"insufficient permission", &policy.Error{Kind: policy.KindInsufficientPermission, Message: "x"}, http.StatusForbidden},
		{"quota", &policy.Error{Kind: policy.KindQuotaExceeded, Message: "x"}, http.StatusConflict},
		{"invalid input", &policy.Error{Kind: policy.KindInvalidInput, Message: "x"}, http.StatusBadRequest},
		{"infrastructure failure", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			respondPolicyError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestRespondPolicyError_InviteReasons(t *testing.T) {
	tests := []struct {
		reason     invite.Reason
		wantStatus int
	}{
		{invite.ReasonNotFound, http.StatusNotFound},
		{invite.ReasonDeactivated, http.StatusGone},
		{invite.ReasonExpired, http.StatusGone},
		{invite.ReasonExhausted, http.StatusGone},
		{invite.ReasonLimitReached, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", nil)

			respondPolicyError(rec, req, &policy.Error{
				Kind:    policy.KindInviteLinkInvalid,
				Message: "invite link invalid: " + string(tt.reason),
				Reason:  string(tt.reason),
			})

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, string(policy.KindInviteLinkInvalid), body["kind"])
		})
	}
}

func TestRespondPolicyError_NoInternalLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	respondPolicyError(rec, req, errors.New("pq: relation members does not exist"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "internal error", body["error"], "infrastructure detail must not reach the client")
}
