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

// Package metrics holds the OTel instruments for policy decisions. HTTP
// level metrics come from otelhttp; this package only counts the domain
// outcomes the transport cannot see from status codes alone.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter bundles the policy engine's instruments. A nil *Meter is a valid
// no-op receiver so callers do not need to guard every record call.
type Meter struct {
	meter          metric.Meter
	policyDenials  metric.Int64Counter
	inviteConsumed metric.Int64Counter
}

// New creates the meter and its instruments. Exporters come from the
// global meter provider configured by the deployment.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	name := serviceName
	if !cfg.Enabled {
		name = "noop"
	}
	meter := otel.Meter(name)

	denials, err := meter.Int64Counter(
		"policy.denials",
		metric.WithDescription("Policy denials by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create denial counter: %w", err)
	}

	consumed, err := meter.Int64Counter(
		"invite.consumed",
		metric.WithDescription("Invite links consumed into memberships"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invite counter: %w", err)
	}

	return &Meter{
		meter:          meter,
		policyDenials:  denials,
		inviteConsumed: consumed,
	}, nil
}

// RecordDenial counts a policy denial by its classification kind.
func (m *Meter) RecordDenial(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.policyDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordInviteConsumed counts a successful invite consumption.
func (m *Meter) RecordInviteConsumed(ctx context.Context) {
	if m == nil {
		return
	}
	m.inviteConsumed.Add(ctx, 1)
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}
