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

package policy

import (
	"errors"

	"github.com/churchstack/churchstack/internal/authz"
	"github.com/churchstack/churchstack/internal/billing"
	"github.com/churchstack/churchstack/internal/invite"
	"github.com/churchstack/churchstack/internal/tenancy"
)

// ErrorKind is the externally visible classification of an expected policy
// outcome. The transport layer maps kinds to status codes in one exhaustive
// switch; nothing anywhere matches on message strings.
type ErrorKind string

const (
	KindActorNotFound          ErrorKind = "actor_not_found"
	KindTenantMismatch         ErrorKind = "tenant_mismatch"
	KindRoleHierarchyViolation ErrorKind = "role_hierarchy_violation"
	KindInsufficientPermission ErrorKind = "insufficient_permission"
	KindQuotaExceeded          ErrorKind = "quota_exceeded"
	KindInviteLinkInvalid      ErrorKind = "invite_link_invalid"
	KindNotFound               ErrorKind = "not_found"
	KindInvalidInput           ErrorKind = "invalid_input"
)

// Error is a typed policy outcome. Expected denials are values of this
// type; only genuine infrastructure failures propagate as plain wrapped
// errors.
type Error struct {
	Kind    ErrorKind
	Message string

	// Reason carries the invite reason code when Kind is
	// KindInviteLinkInvalid, empty otherwise.
	Reason string

	err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// AsError extracts a *Error from err, nil if it is not one.
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// classify converts the lower layers' typed denials and sentinels into the
// facade's error taxonomy. Unknown errors pass through untouched so
// infrastructure failures keep their wrapped chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var denied *authz.Denied
	if errors.As(err, &denied) {
		kind := KindInsufficientPermission
		switch denied.Code {
		case authz.DenyRoleHierarchy:
			kind = KindRoleHierarchyViolation
		case authz.DenyTenantMismatch:
			kind = KindTenantMismatch
		}
		return &Error{Kind: kind, Message: denied.Reason, err: err}
	}

	var quota *billing.QuotaError
	if errors.As(err, &quota) {
		return &Error{Kind: KindQuotaExceeded, Message: quota.Error(), err: err}
	}

	var invalid *invite.ValidationError
	if errors.As(err, &invalid) {
		return &Error{Kind: KindInviteLinkInvalid, Message: invalid.Error(), Reason: string(invalid.Reason), err: err}
	}

	switch {
	case errors.Is(err, tenancy.ErrActorNotFound):
		return &Error{Kind: KindActorNotFound, Message: err.Error(), err: err}
	case errors.Is(err, tenancy.ErrChurchNotFound),
		errors.Is(err, tenancy.ErrBranchNotFound),
		errors.Is(err, tenancy.ErrMemberNotFound),
		errors.Is(err, invite.ErrLinkNotFound):
		return &Error{Kind: KindNotFound, Message: err.Error(), err: err}
	case errors.Is(err, invite.ErrInvalidMaxUses), errors.Is(err, invite.ErrExpiryInPast):
		return &Error{Kind: KindInvalidInput, Message: err.Error(), err: err}
	}

	return err
}
