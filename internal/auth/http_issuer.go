package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPTokenIssuer asks the external identity service for a fresh bearer
// token. The issuer caches internally, so calling per request is cheap.
type HTTPTokenIssuer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTokenIssuer(baseURL string) *HTTPTokenIssuer {
	return &HTTPTokenIssuer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (i *HTTPTokenIssuer) IssueToken(ctx context.Context, principal Principal) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"user_id": principal.UserID,
		"email":   principal.Email,
	})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("token response unreadable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request rejected: status code %d", resp.StatusCode)
	}

	var issued struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &issued); err != nil || issued.Token == "" {
		return "", fmt.Errorf("issuer returned no token")
	}
	return issued.Token, nil
}
