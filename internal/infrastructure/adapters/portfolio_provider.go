package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stackmotive/stackmotive/internal/infrastructure/config"
	"github.com/stackmotive/stackmotive/pkg/circuitbreaker"
	"github.com/stackmotive/stackmotive/pkg/retry"
)

const portfolioProviderService = "portfolio_provider"

// PortfolioProviderClient reads portfolio holdings from the portfolio data
// service. Reads are idempotent, so transient failures are retried.
type PortfolioProviderClient struct {
	client *jsonClient
	retry  retry.RetryConfig
	logger *zap.Logger
}

// NewPortfolioProviderClient creates a new portfolio provider client
func NewPortfolioProviderClient(cfg config.PortfolioProviderConfig, logger *zap.Logger) *PortfolioProviderClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.IsSuccessful = breakerSuccess

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}

	return &PortfolioProviderClient{
		client: newJSONClient(portfolioProviderService, cfg.BaseURL, cfg.APIKey, timeout,
			circuitbreaker.New(portfolioProviderService, breakerCfg, logger), logger),
		retry:  retryCfg,
		logger: logger,
	}
}

// GetPortfolio fetches the current snapshot of a user's portfolio. An unknown
// portfolio yields a nil snapshot and no error.
func (p *PortfolioProviderClient) GetPortfolio(ctx context.Context, userID uuid.UUID, portfolioID string) (*entities.PortfolioSnapshot, error) {
	endpoint := fmt.Sprintf("/v1/users/%s/portfolios/%s", userID, url.PathEscape(portfolioID))

	var snapshot entities.PortfolioSnapshot
	err := retry.WithExponentialBackoff(ctx, p.retry, func() error {
		snapshot = entities.PortfolioSnapshot{}
		return p.client.do(ctx, "GET", endpoint, nil, &snapshot)
	}, nil)
	if errors.Is(err, errNotFound) {
		p.logger.Info("Portfolio not found at provider",
			zap.String("user_id", userID.String()),
			zap.String("portfolio_id", portfolioID))
		return nil, nil
	}
	if err != nil {
		p.logger.Error("Failed to fetch portfolio",
			zap.String("user_id", userID.String()),
			zap.String("portfolio_id", portfolioID),
			zap.Error(err))
		return nil, err
	}

	if snapshot.PortfolioID == "" {
		snapshot.PortfolioID = portfolioID
	}
	if snapshot.UserID == uuid.Nil {
		snapshot.UserID = userID
	}

	p.logger.Debug("Fetched portfolio",
		zap.String("portfolio_id", portfolioID),
		zap.Int("holdings", len(snapshot.Holdings)),
		zap.String("total_value", snapshot.TotalValue.String()))
	return &snapshot, nil
}

// Ping checks that the provider answers its health endpoint.
func (p *PortfolioProviderClient) Ping(ctx context.Context) error {
	return p.client.doRequest(ctx, "GET", "/health", nil, nil)
}

// BreakerState reports the provider circuit breaker state.
func (p *PortfolioProviderClient) BreakerState() string { return p.client.breakerState() }

// BreakerCounts reports the provider circuit breaker counters.
func (p *PortfolioProviderClient) BreakerCounts() map[string]interface{} {
	return p.client.breakerCounts()
}
