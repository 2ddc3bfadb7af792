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
	"context"

	"github.com/churchstack/churchstack/internal/authz"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	actorKey  contextKey = "actor"
)

// GetUserID retrieves the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

// GetActor retrieves the resolved actor from context, nil when the request
// never passed the actor middleware.
func GetActor(ctx context.Context) *authz.Actor {
	if val, ok := ctx.Value(actorKey).(*authz.Actor); ok {
		return val
	}
	return nil
}
