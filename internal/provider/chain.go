package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Chain tries multiple providers in order until one succeeds.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain. Nil providers are skipped; at least
// one provider is required.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger creates a provider chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	var list []Provider
	for _, p := range providers {
		if p != nil {
			list = append(list, p)
		}
	}
	if len(list) == 0 {
		return nil, ErrNoProviders
	}
	return &Chain{
		providers: list,
		logger:    logger.With("component", "provider.chain"),
	}, nil
}

// Prepend returns a new chain that tries providers before the receiver's
// own. The receiver is not modified.
func (c *Chain) Prepend(providers ...Provider) *Chain {
	list := make([]Provider, 0, len(providers)+len(c.providers))
	for _, p := range providers {
		if p != nil {
			list = append(list, p)
		}
	}
	list = append(list, c.providers...)
	return &Chain{providers: list, logger: c.logger}
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// Reply tries each provider until one answers.
func (c *Chain) Reply(ctx context.Context, req *Request) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "relay reply",
		trace.WithAttributes(attribute.Int("chain.providers", len(c.providers))))
	defer span.End()

	var errs []error
	for i, p := range c.providers {
		reply, err := c.try(ctx, p, req)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded",
					"provider", p.Name(),
					"provider_index", i,
				)
			}
			span.SetAttributes(attribute.String("reply.source", reply.Source))
			return reply, nil
		}

		errs = append(errs, err)
		c.logger.Warn("provider failed, trying next", failureAttrs(p, i, err)...)

		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context done")
			return nil, ctx.Err()
		}
	}

	chainErr := &ChainError{Errors: errs}
	span.RecordError(chainErr)
	span.SetStatus(codes.Error, "all providers failed")
	return nil, chainErr
}

func (c *Chain) try(ctx context.Context, p Provider, req *Request) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "provider reply",
		trace.WithAttributes(attribute.String("provider.name", p.Name())))
	defer span.End()

	start := time.Now()
	reply, err := p.Reply(ctx, req)
	if err == nil && (reply == nil || reply.Text == "") {
		err = WrapError(p.Name(), ErrEmptyReply)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if reply.LatencyMs == 0 {
		reply.LatencyMs = time.Since(start).Milliseconds()
	}
	span.SetAttributes(attribute.Int64("reply.latency_ms", reply.LatencyMs))
	return reply, nil
}

// failureAttrs describes a failed attempt, flagging the API errors an
// operator has to act on.
func failureAttrs(p Provider, index int, err error) []any {
	attrs := []any{
		"provider", p.Name(),
		"provider_index", index,
		"error", err,
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			"status", apiErr.StatusCode,
			"rate_limited", apiErr.IsRateLimited(),
			"unauthorized", apiErr.IsUnauthorized(),
		)
	}
	return attrs
}

// Providers returns the providers in try order.
func (c *Chain) Providers() []Provider {
	return append([]Provider(nil), c.providers...)
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
