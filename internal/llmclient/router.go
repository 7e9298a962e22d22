package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

// Router implements schemas.LLMClient and routes requests to the fast or
// powerful tier client based on the request's Tier. A shared rate limiter
// throttles all outbound oracle calls regardless of tier.
type Router struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.LLMClient
	limiter *rate.Limiter
}

// NewRouter creates a new router with the specified clients for each tier.
// requestsPerMinute bounds the combined outbound request rate.
func NewRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient, requestsPerMinute float64) (*Router, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}
	if requestsPerMinute <= 0 {
		return nil, fmt.Errorf("requestsPerMinute must be positive")
	}

	return &Router{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), 1),
	}, nil
}

// Generate selects the appropriate client based on the request's Tier and
// forwards the call, blocking first on the shared rate limiter.
func (r *Router) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	return client.Generate(ctx, req)
}

// Close closes every underlying tier client.
func (r *Router) Close() error {
	var firstErr error
	for tier, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s tier client: %w", tier, err)
		}
	}
	return firstErr
}
