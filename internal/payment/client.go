package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// DefaultTimeout bounds a single provider call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// httpClient sends provider requests with no automatic retries, guarded by a
// per-provider circuit breaker. A retried create request could open two
// payments for one cart.
type httpClient struct {
	provider string
	rest     *resty.Client
	breaker  *gobreaker.CircuitBreaker
}

func newHTTPClient(provider string, timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,                // probes allowed while half-open
		Interval:    30 * time.Second, // window for failure counts
		Timeout:     30 * time.Second, // open duration before probing
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.Business.SetBreakerState(name, breakerStateValue(to))
		},
	})

	return &httpClient{
		provider: provider,
		rest: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json"),
		breaker: breaker,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// do runs build through the breaker. Transport errors and non-2xx statuses
// count as breaker failures and come back as EGATEWAY errors.
func (c *httpClient) do(ctx context.Context, op string, build func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := build(c.rest.R().SetContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
		}
		return resp, nil
	})

	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "breaker_open"
		}
		telemetry.Business.RecordGatewayCall(c.provider, outcome, elapsed)
		return nil, domain.Gateway(err, op, "Payment provider unavailable")
	}

	telemetry.Business.RecordGatewayCall(c.provider, "success", elapsed)
	return result.(*resty.Response), nil
}
