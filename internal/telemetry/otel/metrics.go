package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/CCodeCommunity/CardGameBackend/auth"

// AuthMetrics holds the counters recorded by the auth service. A nil *AuthMetrics is a no-op.
type AuthMetrics struct {
	logins          metric.Int64Counter
	refreshes       metric.Int64Counter
	compromises     metric.Int64Counter
	authorizeDenied metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on mp.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	meter := mp.Meter(meterName)
	var (
		m   AuthMetrics
		err error
	)
	if m.logins, err = meter.Int64Counter("auth.logins", metric.WithDescription("Login attempts by result")); err != nil {
		return nil, err
	}
	if m.refreshes, err = meter.Int64Counter("auth.refreshes", metric.WithDescription("Refresh attempts by result")); err != nil {
		return nil, err
	}
	if m.compromises, err = meter.Int64Counter("auth.compromises", metric.WithDescription("Compromise responses by reason")); err != nil {
		return nil, err
	}
	if m.authorizeDenied, err = meter.Int64Counter("auth.authorize.denied", metric.WithDescription("Rejected access tokens by reason")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *AuthMetrics) Login(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *AuthMetrics) Refresh(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *AuthMetrics) Compromise(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.compromises.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *AuthMetrics) AuthorizeDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.authorizeDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
