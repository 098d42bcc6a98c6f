package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/logger"
	"github.com/bnema/marketwin/internal/ports"
)

// AccountingError reports that a feature ran but its usage could not be
// recorded. Result holds what the executor returned.
type AccountingError struct {
	AccountID domain.AccountID
	Feature   domain.Feature
	Result    ports.FeatureResult
	Err       error
}

func (e *AccountingError) Error() string {
	return fmt.Sprintf("record %s usage for account %s after successful execution: %v", e.Feature, e.AccountID, e.Err)
}

func (e *AccountingError) Unwrap() error { return e.Err }

type Outcome struct {
	Result    ports.FeatureResult
	Payloads  map[domain.Platform]domain.Payload
	Count     int64
	Remaining domain.Remaining
}

// Gateway runs metered actions: check entitlement, execute, then record.
// Check and record are separate steps, so concurrent requests near the cap
// can both pass the check.
type Gateway struct {
	evaluator *Evaluator
	ledger    *Ledger
	registry  *ConnectionRegistry
	adapter   *DispatchAdapter
	executor  ports.FeatureExecutor
	metrics   ports.Metrics
	log       logger.Logger
}

type GatewayOption func(*Gateway)

func WithMetrics(m ports.Metrics) GatewayOption {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

func WithLogger(l logger.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGateway(evaluator *Evaluator, ledger *Ledger, registry *ConnectionRegistry, adapter *DispatchAdapter, executor ports.FeatureExecutor, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		evaluator: evaluator,
		ledger:    ledger,
		registry:  registry,
		adapter:   adapter,
		executor:  executor,
		metrics:   ports.NopMetrics{},
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Use(ctx context.Context, cmd UseFeatureCommand) (Outcome, error) {
	if cmd.Feature == domain.FeatureSocialPosts {
		return Outcome{}, fmt.Errorf("%w: %s goes through Publish", domain.ErrInvalidContent, cmd.Feature)
	}

	decision, err := g.authorize(ctx, cmd.AccountID, cmd.Feature)
	if err != nil {
		return Outcome{}, err
	}

	result, err := g.executor.Execute(ctx, ports.FeatureRequest{
		AccountID: cmd.AccountID,
		Feature:   cmd.Feature,
		Input:     cmd.Input,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("execute %s: %w", cmd.Feature, err)
	}

	return g.record(ctx, cmd.AccountID, decision, Outcome{Result: result})
}

// Publish posts content to every target platform as one social post.
func (g *Gateway) Publish(ctx context.Context, cmd PublishCommand) (Outcome, error) {
	if len(cmd.Platforms) == 0 {
		return Outcome{}, fmt.Errorf("%w: no target platforms", domain.ErrInvalidContent)
	}

	decision, err := g.authorize(ctx, cmd.AccountID, domain.FeatureSocialPosts)
	if err != nil {
		return Outcome{}, err
	}

	payloads, err := g.adapter.Adapt(cmd.Content, cmd.Platforms)
	if err != nil {
		return Outcome{}, err
	}

	credentials := make(map[domain.Platform]domain.CredentialBundle, len(cmd.Platforms))
	for _, platform := range cmd.Platforms {
		bundle, err := g.registry.Credential(ctx, cmd.AccountID, platform)
		if errors.Is(err, domain.ErrPlatformNotConnected) || errors.Is(err, domain.ErrCredentialExpired) {
			g.metrics.Denied(domain.FeatureSocialPosts, domain.DenialPlatformNotConnected)
			return Outcome{}, &domain.Denial{
				Code:      domain.DenialPlatformNotConnected,
				Feature:   domain.FeatureSocialPosts,
				Platform:  platform,
				Remaining: decision.Remaining,
			}
		}
		if err != nil {
			return Outcome{}, err
		}
		credentials[platform] = bundle
	}

	result, err := g.executor.Execute(ctx, ports.FeatureRequest{
		AccountID:   cmd.AccountID,
		Feature:     domain.FeatureSocialPosts,
		Input:       withContent(cmd.Input, cmd.Content),
		Payloads:    payloads,
		Credentials: credentials,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("execute %s: %w", domain.FeatureSocialPosts, err)
	}

	return g.record(ctx, cmd.AccountID, decision, Outcome{Result: result, Payloads: payloads})
}

// RetryAccounting records a unit whose execution already succeeded.
func (g *Gateway) RetryAccounting(ctx context.Context, failed *AccountingError) (int64, error) {
	count, err := g.ledger.RecordUsage(ctx, failed.AccountID, failed.Feature)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (g *Gateway) authorize(ctx context.Context, id domain.AccountID, feature domain.Feature) (Decision, error) {
	decision, err := g.evaluator.Check(ctx, id, feature)
	if err != nil {
		return Decision{}, err
	}
	if !decision.Allowed {
		g.metrics.Denied(feature, decision.Reason)
		g.log.Info("feature denied",
			"account_id", string(id),
			"feature", string(feature),
			"reason", string(decision.Reason),
			"remaining", decision.Remaining.String(),
		)
		return decision, decision.Denial()
	}
	return decision, nil
}

func (g *Gateway) record(ctx context.Context, id domain.AccountID, decision Decision, outcome Outcome) (Outcome, error) {
	count, err := g.ledger.RecordUsage(ctx, id, decision.Feature)
	if err != nil {
		g.metrics.AccountingFailed(decision.Feature)
		g.log.Error("usage accounting failed after successful execution",
			"account_id", string(id),
			"feature", string(decision.Feature),
			"error", err.Error(),
		)
		return outcome, &AccountingError{AccountID: id, Feature: decision.Feature, Result: outcome.Result, Err: err}
	}

	g.metrics.UsageRecorded(decision.Plan, decision.Feature)
	outcome.Count = count
	outcome.Remaining = domain.RemainingFor(decision.Quota, count)
	return outcome, nil
}

func withContent(input map[string]any, content string) map[string]any {
	out := make(map[string]any, len(input)+1)
	for k, v := range input {
		out[k] = v
	}
	out["content"] = content
	return out
}
