package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "go-damage-sync/internal/errors"
	"go-damage-sync/pkg/models"
)

// FetchDashboard retrieves the server-side cross-user aggregate used by
// admin views. Callers route it through the request cache: the read is
// expensive on the backend and tolerates staleness.
func (f *Fetcher) FetchDashboard(ctx context.Context, perUserLimit, maxUsers int) (models.AggregatedStats, error) {
	var stats models.AggregatedStats

	headers, err := f.headers.Headers(ctx)
	if err != nil {
		return stats, err
	}

	url := fmt.Sprintf("%s/dashboard?per_user_limit=%d&max_users=%d", f.baseURL, perUserLimit, maxUsers)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return stats, apperrors.NewInternalError("invalid dashboard request", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return stats, apperrors.NewNetworkError("dashboard request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return stats, apperrors.NewNetworkError("dashboard response unreadable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return stats, apperrors.NewNetworkError(
			fmt.Sprintf("dashboard fetch failed: %s", serverMessage(payload, resp.StatusCode)), nil)
	}

	if err := json.Unmarshal(payload, &stats); err != nil {
		return stats, apperrors.NewNetworkError("dashboard payload unreadable", err)
	}
	return stats, nil
}
