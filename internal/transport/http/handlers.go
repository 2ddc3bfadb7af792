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

// Package http exposes the policy engine over a chi router. Authenticated
// routes resolve the caller to an actor before any handler runs; the
// public invite routes sit behind a per-IP rate limiter.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/churchstack/churchstack/internal/authz"
	"github.com/churchstack/churchstack/internal/identity"
	"github.com/churchstack/churchstack/internal/observability/logger"
	"github.com/churchstack/churchstack/internal/observability/metrics"
	"github.com/churchstack/churchstack/internal/policy"
	"github.com/churchstack/churchstack/internal/tenancy"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	tokens          *identity.TokenIssuer
	resolver        *tenancy.Resolver
	policyService   *policy.Service
	meter           *metrics.Meter
}

// NewHandler creates a new HTTP handler. meter may be nil.
func NewHandler(
	identityService *identity.Service,
	tokens *identity.TokenIssuer,
	resolver *tenancy.Resolver,
	policyService *policy.Service,
	meter *metrics.Meter,
) *Handler {
	return &Handler{
		identityService: identityService,
		tokens:          tokens,
		resolver:        resolver,
		policyService:   policyService,
		meter:           meter,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints. The invite routes are the only unauthenticated
		// write path into the system, so they carry the rate limiter.
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(rateLimiter))
			r.Post("/auth/login", h.Login)
			r.Get("/invites/{token}", h.ValidateInvite)
			r.Post("/invites/{token}/register", h.RegisterViaInvite)
		})

		// Authenticated, actor-scoped endpoints.
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Post("/auth/change-password", h.ChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(h.ActorMiddleware)
				r.Get("/auth/me", h.GetCurrentActor)

				r.Post("/members", h.CreateMember)
				r.Get("/members/{memberID}", h.GetMember)
				r.Put("/members/{memberID}/role", h.ChangeRole)
				r.Put("/members/{memberID}/permissions", h.SetPermissions)

				r.Get("/branches", h.ListBranches)
				r.Post("/branches", h.CreateBranch)

				r.Post("/invite-links", h.CreateInviteLink)
				r.Delete("/invite-links/{linkID}", h.DeactivateInviteLink)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "churchstack",
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and issues an access token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if err == identity.ErrAccountLocked {
			respondError(w, http.StatusForbidden, "account is locked")
			return
		}
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", logger.Error(err), logger.UserID(user.ID))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user_id":      user.ID,
		"email":        user.Email,
	})
}

// ChangePasswordRequest represents password change data
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword updates the password of the authenticated user
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.identityService.ChangePassword(r.Context(), GetUserID(r.Context()), req.OldPassword, req.NewPassword)
	if err != nil {
		switch err {
		case identity.ErrInvalidCredentials:
			respondError(w, http.StatusUnauthorized, "invalid old password")
		case identity.ErrWeakPassword:
			respondError(w, http.StatusBadRequest, "new password does not meet security requirements")
		default:
			respondError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "password changed successfully",
	})
}

// GetCurrentActor returns the resolved actor of the current request
func (h *Handler) GetCurrentActor(w http.ResponseWriter, r *http.Request) {
	actor := GetActor(r.Context())

	respondJSON(w, http.StatusOK, map[string]any{
		"member_id":   actor.MemberID,
		"user_id":     actor.UserID,
		"role":        actor.Role,
		"branch_id":   actor.BranchID,
		"church_id":   actor.ChurchID,
		"permissions": actor.Permissions,
	})
}

// CreateMemberRequest represents member creation data
type CreateMemberRequest struct {
	BranchID string `json:"branch_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Position string `json:"position"`
}

// CreateMember creates a member in a branch
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.policyService.CreateMember(r.Context(), GetActor(r.Context()), policy.CreateMemberInput{
		BranchID: req.BranchID,
		Name:     req.Name,
		Email:    req.Email,
		Role:     authz.Role(req.Role),
		Position: req.Position,
	})
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, member)
}

// GetMember returns a single member
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.policyService.GetMember(r.Context(), GetActor(r.Context()), chi.URLParam(r, "memberID"))
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, member)
}

// ChangeRoleRequest represents a role transition
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeRole moves a member to a new role
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.policyService.ChangeRole(r.Context(), GetActor(r.Context()), chi.URLParam(r, "memberID"), authz.Role(req.Role))
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, member)
}

// SetPermissionsRequest represents a full permission replacement
type SetPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SetPermissions replaces a member's permission set
func (h *Handler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	var req SetPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.policyService.GrantPermissions(r.Context(), GetActor(r.Context()), chi.URLParam(r, "memberID"), req.Permissions)
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "permissions updated",
	})
}

// ListBranches lists the branches of the actor's church
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.policyService.ListBranches(r.Context(), GetActor(r.Context()))
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"branches": branches,
	})
}

// CreateBranchRequest represents branch creation data
type CreateBranchRequest struct {
	Name string `json:"name"`
}

// CreateBranch creates a branch in the actor's church
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	branch, err := h.policyService.CreateBranch(r.Context(), GetActor(r.Context()), req.Name)
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, branch)
}

// CreateInviteLinkRequest represents invite link creation data
type CreateInviteLinkRequest struct {
	BranchID  string     `json:"branch_id"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateInviteLink issues an invite link for a branch
func (h *Handler) CreateInviteLink(w http.ResponseWriter, r *http.Request) {
	var req CreateInviteLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.policyService.CreateInviteLink(r.Context(), GetActor(r.Context()), req.BranchID, req.MaxUses, req.ExpiresAt)
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, link)
}

// DeactivateInviteLink turns an invite link off
func (h *Handler) DeactivateInviteLink(w http.ResponseWriter, r *http.Request) {
	err := h.policyService.DeactivateInviteLink(r.Context(), GetActor(r.Context()), chi.URLParam(r, "linkID"))
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "invite link deactivated",
	})
}

// ValidateInvite checks an invite token for the public registration page
func (h *Handler) ValidateInvite(w http.ResponseWriter, r *http.Request) {
	link, err := h.policyService.ValidateInviteLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.policyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"branch_id":  link.BranchID,
		"expires_at": link.ExpiresAt,
	})
}

// RegisterViaInviteRequest represents a public invite signup
type RegisterViaInviteRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterViaInvite consumes one invite slot and creates the new member.
// When an email and password are supplied the signup also provisions a
// login identity and links the member to it.
func (h *Handler) RegisterViaInvite(w http.ResponseWriter, r *http.Request) {
	var req RegisterViaInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var userID *string
	if req.Email != "" && req.Password != "" {
		user, err := h.identityService.ProvisionIdentity(r.Context(), req.Email, req.Name)
		if err != nil {
			switch err {
			case identity.ErrUserAlreadyExists:
				respondError(w, http.StatusConflict, "an account with this email already exists")
			case identity.ErrInvalidEmail:
				respondError(w, http.StatusBadRequest, "invalid email address")
			default:
				respondError(w, http.StatusInternalServerError, "failed to create account")
			}
			return
		}
		if err := h.identityService.AddPassword(r.Context(), user.ID, req.Password); err != nil {
			if err == identity.ErrWeakPassword {
				respondError(w, http.StatusBadRequest, "password does not meet security requirements")
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to set password")
			return
		}
		userID = &user.ID
	}

	member, err := h.policyService.ConsumeInviteLink(r.Context(), chi.URLParam(r, "token"), policy.Registration{
		Name:   req.Name,
		Email:  req.Email,
		UserID: userID,
	})
	if err != nil {
		h.policyError(w, r, err)
		return
	}
	h.meter.RecordInviteConsumed(r.Context())

	respondJSON(w, http.StatusCreated, map[string]any{
		"member_id": member.ID,
		"branch_id": member.BranchID,
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
