package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stackmotive/stackmotive/internal/infrastructure/config"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/version"
)

func TestPortfolioProviderClient_GetPortfolio(t *testing.T) {
	userID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/users/"+userID.String()+"/portfolios/pf-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, version.UserAgent(), r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"currency":    "NZD",
			"total_value": "15000",
			"holdings": []map[string]interface{}{
				{"symbol": "VTI", "asset_class": "etfs", "region": "US", "value": "10000"},
				{"symbol": "FNZ", "asset_class": "equities", "region": "NZ", "is_domestic": true, "value": "5000"},
			},
		})
	}))
	defer server.Close()

	client := NewPortfolioProviderClient(config.PortfolioProviderConfig{
		BaseURL:        server.URL,
		APIKey:         "secret",
		TimeoutSeconds: 5,
	}, zaptest.NewLogger(t))

	snapshot, err := client.GetPortfolio(context.Background(), userID, "pf-1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, "pf-1", snapshot.PortfolioID)
	assert.Equal(t, userID, snapshot.UserID)
	assert.Equal(t, entities.CurrencyNZD, snapshot.Currency)
	require.Len(t, snapshot.Holdings, 2)
	assert.True(t, snapshot.Holdings[0].Value.Equal(decimal.NewFromInt(10000)))
	assert.True(t, snapshot.Holdings[1].IsDomestic)
}

func TestPortfolioProviderClient_NotFoundReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewPortfolioProviderClient(config.PortfolioProviderConfig{BaseURL: server.URL}, zaptest.NewLogger(t))

	snapshot, err := client.GetPortfolio(context.Background(), uuid.New(), "missing")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestPortfolioProviderClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"currency":"AUD","total_value":"100","holdings":[]}`))
	}))
	defer server.Close()

	client := NewPortfolioProviderClient(config.PortfolioProviderConfig{
		BaseURL:    server.URL,
		MaxRetries: 3,
	}, zaptest.NewLogger(t))

	snapshot, err := client.GetPortfolio(context.Background(), uuid.New(), "pf-1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, entities.CurrencyAUD, snapshot.Currency)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPortfolioProviderClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"bad_portfolio","message":"portfolio id is malformed"}`))
	}))
	defer server.Close()

	client := NewPortfolioProviderClient(config.PortfolioProviderConfig{
		BaseURL:    server.URL,
		MaxRetries: 3,
	}, zaptest.NewLogger(t))

	_, err := client.GetPortfolio(context.Background(), uuid.New(), "??")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Contains(t, appErr.Message, "portfolio id is malformed")
	assert.Equal(t, "bad_portfolio", appErr.Details["upstream_code"])
}

func TestTradeExecutionClient_ExecuteTrades(t *testing.T) {
	ringID := uuid.New()
	classID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders/batch", r.URL.Path)

		var req batchOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Orders, 1)

		order := req.Orders[0]
		json.NewEncoder(w).Encode(batchOrderResponse{Fills: []entities.TradeFill{{
			ClientOrderID: order.ClientOrderID,
			AssetClassID:  order.AssetClassID,
			Action:        order.Action,
			FilledAmount:  order.Amount,
			Fees:          decimal.RequireFromString("1.50"),
			Success:       true,
		}}})
	}))
	defer server.Close()

	client := NewTradeExecutionClient(config.TradeExecutionConfig{BaseURL: server.URL}, zaptest.NewLogger(t))

	fills, err := client.ExecuteTrades(context.Background(), []entities.TradeOrder{{
		ClientOrderID: "sugg-0",
		RingID:        ringID,
		AssetClassID:  classID,
		Category:      entities.AssetClassBonds,
		Action:        entities.TradeActionBuy,
		Amount:        decimal.NewFromInt(2500),
		Currency:      entities.CurrencyNZD,
	}})
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "sugg-0", fills[0].ClientOrderID)
	assert.Equal(t, classID, fills[0].AssetClassID)
	assert.True(t, fills[0].FilledAmount.Equal(decimal.NewFromInt(2500)))
	assert.True(t, fills[0].Success)
}

func TestTradeExecutionClient_EmptyBatchSkipsCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer server.Close()

	client := NewTradeExecutionClient(config.TradeExecutionConfig{BaseURL: server.URL}, zaptest.NewLogger(t))

	fills, err := client.ExecuteTrades(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, fills)
}

func TestTradeExecutionClient_NoRetryAndBreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewTradeExecutionClient(config.TradeExecutionConfig{BaseURL: server.URL}, zaptest.NewLogger(t))
	orders := []entities.TradeOrder{{ClientOrderID: "x-0", RingID: uuid.New(), Action: entities.TradeActionSell, Amount: decimal.NewFromInt(10)}}

	for i := 0; i < 3; i++ {
		_, err := client.ExecuteTrades(context.Background(), orders)
		require.Error(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	_, err := client.ExecuteTrades(context.Background(), orders)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeCircuitOpen, appErr.Code)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInAppNotificationSender_Send(t *testing.T) {
	sender := NewInAppNotificationSender(zaptest.NewLogger(t))
	ctx := context.Background()

	n := &entities.Notification{
		UserID:   uuid.New(),
		Type:     entities.NotificationTypeAllocation,
		Channel:  entities.ChannelInApp,
		Priority: entities.PriorityHigh,
		Title:    "Rebalancing Recommended",
	}
	require.NoError(t, sender.Send(ctx, n, nil))
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.NotNil(t, n.SentAt)

	optedOut := &entities.UserPreference{PortfolioUpdates: false}
	suppressed := &entities.Notification{UserID: uuid.New(), Priority: entities.PriorityHigh}
	require.NoError(t, sender.Send(ctx, suppressed, optedOut))
	assert.Nil(t, suppressed.SentAt)

	critical := &entities.Notification{UserID: uuid.New(), Priority: entities.PriorityCritical}
	require.NoError(t, sender.Send(ctx, critical, optedOut))
	assert.NotNil(t, critical.SentAt)
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "GET /v1/users/:id/portfolios/:id", endpointLabel("GET", "/v1/users/abc/portfolios/pf-1"))
	assert.Equal(t, "POST /v1/orders/batch", endpointLabel("POST", "/v1/orders/batch"))
}
