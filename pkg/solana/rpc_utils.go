package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	Jsonrpc string           `json:"jsonrpc"`
	Result  interface{}      `json:"result"`
	Error   *json.RawMessage `json:"error"`
	ID      int              `json:"id"`
}

// RPCCheckResult represents the result of checking an RPC endpoint
type RPCCheckResult struct {
	URL     string        `json:"url"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthChecker probes RPC endpoints with getHealth.
type HealthChecker struct {
	client *resty.Client
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	return &HealthChecker{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Check probes a single endpoint.
func (h *HealthChecker) Check(ctx context.Context, url string) RPCCheckResult {
	start := time.Now()

	var result RPCResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(RPCRequest{Jsonrpc: "2.0", ID: 1, Method: "getHealth", Params: []interface{}{}}).
		SetResult(&result).
		SetError(&result).
		Post(url)
	latency := time.Since(start)

	if err != nil {
		return RPCCheckResult{URL: url, Latency: latency, Error: err.Error()}
	}
	if resp.StatusCode() != 200 {
		return RPCCheckResult{URL: url, Latency: latency, Error: fmt.Sprintf("status code: %d", resp.StatusCode())}
	}
	if result.Error != nil {
		return RPCCheckResult{URL: url, Latency: latency, Error: fmt.Sprintf("rpc error: %s", string(*result.Error))}
	}
	return RPCCheckResult{URL: url, OK: true, Latency: latency}
}

// CheckAll probes every endpoint concurrently. Results keep the order of urls.
func (h *HealthChecker) CheckAll(ctx context.Context, urls []string) []RPCCheckResult {
	results := make([]RPCCheckResult, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = h.Check(ctx, url)
		}(i, url)
	}
	wg.Wait()
	return results
}
