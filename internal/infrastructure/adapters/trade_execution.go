package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stackmotive/stackmotive/internal/infrastructure/config"
	"github.com/stackmotive/stackmotive/pkg/circuitbreaker"
)

const tradeExecutionService = "trade_execution"

type batchOrderRequest struct {
	Orders []entities.TradeOrder `json:"orders"`
}

type batchOrderResponse struct {
	Fills []entities.TradeFill `json:"fills"`
}

// TradeExecutionClient submits rebalancing orders to the trade execution
// service. Submissions are never retried: a timed-out batch may still fill.
type TradeExecutionClient struct {
	client *jsonClient
	logger *zap.Logger
}

// NewTradeExecutionClient creates a new trade execution client
func NewTradeExecutionClient(cfg config.TradeExecutionConfig, logger *zap.Logger) *TradeExecutionClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.IsSuccessful = breakerSuccess

	return &TradeExecutionClient{
		client: newJSONClient(tradeExecutionService, cfg.BaseURL, cfg.APIKey, timeout,
			circuitbreaker.New(tradeExecutionService, breakerCfg, logger), logger),
		logger: logger,
	}
}

// ExecuteTrades submits orders as one batch and returns the fill reported
// for each order.
func (t *TradeExecutionClient) ExecuteTrades(ctx context.Context, orders []entities.TradeOrder) ([]entities.TradeFill, error) {
	if len(orders) == 0 {
		return []entities.TradeFill{}, nil
	}

	t.logger.Info("Submitting rebalancing orders",
		zap.String("ring_id", orders[0].RingID.String()),
		zap.Int("orders", len(orders)))

	var response batchOrderResponse
	err := t.client.do(ctx, "POST", "/v1/orders/batch", batchOrderRequest{Orders: orders}, &response)
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("trade execution endpoint not found: %w", err)
	}
	if err != nil {
		t.logger.Error("Failed to submit orders",
			zap.String("ring_id", orders[0].RingID.String()),
			zap.Error(err))
		return nil, err
	}

	filled := 0
	for _, fill := range response.Fills {
		if fill.Success {
			filled++
		}
	}
	t.logger.Info("Orders executed",
		zap.String("ring_id", orders[0].RingID.String()),
		zap.Int("fills", len(response.Fills)),
		zap.Int("successful", filled))

	if response.Fills == nil {
		response.Fills = []entities.TradeFill{}
	}
	return response.Fills, nil
}

// Ping checks that the execution service answers its health endpoint.
func (t *TradeExecutionClient) Ping(ctx context.Context) error {
	return t.client.doRequest(ctx, "GET", "/health", nil, nil)
}

// BreakerState reports the execution circuit breaker state.
func (t *TradeExecutionClient) BreakerState() string { return t.client.breakerState() }

// BreakerCounts reports the execution circuit breaker counters.
func (t *TradeExecutionClient) BreakerCounts() map[string]interface{} {
	return t.client.breakerCounts()
}
