package adapters

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/metrics"
	"github.com/stackmotive/stackmotive/pkg/tracing"
	"github.com/stackmotive/stackmotive/pkg/version"
)

// errNotFound marks a 404 from a collaborator. Callers decide what absence means.
var errNotFound = errors.New("resource not found")

// apiErrorResponse is the error body both collaborators return.
type apiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// jsonClient sends JSON requests to one collaborator behind a circuit breaker.
type jsonClient struct {
	service    string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func newJSONClient(service, baseURL, apiKey string, timeout time.Duration, breaker *gobreaker.CircuitBreaker, logger *zap.Logger) *jsonClient {
	return &jsonClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: breaker,
		logger:  logger,
	}
}

// do runs one request through the breaker. An open breaker is reported as a
// non-retryable error carrying CodeCircuitOpen.
func (c *jsonClient) do(ctx context.Context, method, endpoint string, body, response interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doRequest(ctx, method, endpoint, body, response)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeExternal, apperrors.CodeCircuitOpen,
			fmt.Sprintf("%s is unavailable", c.service))
	}
	return err
}

func (c *jsonClient) doRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	fullURL := c.baseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	tracing.InjectTraceContext(ctx, req.Header)

	c.logger.Debug("Sending request",
		zap.String("service", c.service),
		zap.String("method", method),
		zap.String("url", fullURL))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPICall(c.service, endpointLabel(method, endpoint), "error", time.Since(start).Seconds())
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordExternalAPICall(c.service, endpointLabel(method, endpoint), strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 400 {
		return statusError(c.service, resp.StatusCode, respBody)
	}

	if response != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// statusError classifies an HTTP failure. Every 5xx is treated as transient.
func statusError(service string, status int, body []byte) *apperrors.AppError {
	errType := apperrors.ClassifyHTTPError(status)
	if status >= 500 {
		errType = apperrors.ErrorTypeTransient
	}

	message := fmt.Sprintf("%s returned status %d", service, status)
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		message = fmt.Sprintf("%s: %s", message, apiErr.Message)
	}

	appErr := apperrors.WrapWithType(fmt.Errorf("status %d", status), errType, apperrors.CodeExternalService, message)
	appErr.StatusCode = status
	if apiErr.Code != "" {
		appErr.WithDetail("upstream_code", apiErr.Code)
	}
	return appErr
}

// breakerSuccess keeps client errors from tripping the breaker.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, errNotFound) || !apperrors.IsCircuitBreakerError(err)
}

// endpointLabel drops path ids so metric cardinality stays bounded.
func endpointLabel(method, endpoint string) string {
	if i := strings.Index(endpoint, "?"); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p != "" && !isStaticSegment(p) {
			parts[i] = ":id"
		}
	}
	return method + " " + strings.Join(parts, "/")
}

func isStaticSegment(p string) bool {
	switch p {
	case "v1", "users", "portfolios", "orders", "batch":
		return true
	}
	return false
}

func (c *jsonClient) breakerState() string {
	return c.breaker.State().String()
}

func (c *jsonClient) breakerCounts() map[string]interface{} {
	counts := c.breaker.Counts()
	return map[string]interface{}{
		"requests":             counts.Requests,
		"total_failures":       counts.TotalFailures,
		"consecutive_failures": counts.ConsecutiveFailures,
	}
}
