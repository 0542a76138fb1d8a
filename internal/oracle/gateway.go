package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"confidential-market/internal/confidential"
)

// GatewayClient forwards decryption requests to an external oracle gateway
// over HTTP. The gateway answers with a request id and later posts the
// result to CallbackURL.
type GatewayClient struct {
	baseURL     string
	callbackURL string
	httpClient  *http.Client
}

type gatewayRequest struct {
	Handles     []string `json:"handles"`
	CallbackURL string   `json:"callback_url"`
}

type gatewayResponse struct {
	RequestID uint64 `json:"request_id"`
	Error     string `json:"error,omitempty"`
}

// NewGatewayClient creates a new gateway client
func NewGatewayClient(baseURL, callbackURL string) *GatewayClient {
	return &GatewayClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		callbackURL: callbackURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// RequestDecryption posts the handles to the gateway's public decryption endpoint.
func (g *GatewayClient) RequestDecryption(ctx context.Context, handles []confidential.Handle) (uint64, error) {
	if len(handles) == 0 {
		return 0, ErrNoHandles
	}
	body, err := json.Marshal(gatewayRequest{
		Handles:     confidential.HandleStrings(handles),
		CallbackURL: g.callbackURL,
	})
	if err != nil {
		return 0, fmt.Errorf("oracle: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/public-decrypt", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %v", ErrRequestFailed, err)
	}
	var out gatewayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(raw))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return 0, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, out.Error)
	}
	if out.RequestID == 0 {
		return 0, fmt.Errorf("%w: gateway returned no request id", ErrRequestFailed)
	}
	if out.RequestID > MaxRequestID {
		return 0, fmt.Errorf("%w: request id %d out of range", ErrRequestFailed, out.RequestID)
	}
	return out.RequestID, nil
}

var _ Oracle = (*GatewayClient)(nil)
