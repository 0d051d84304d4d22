package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go-damage-sync/pkg/models"
)

// HeaderSource supplies authenticated request headers.
type HeaderSource interface {
	Headers(ctx context.Context) (http.Header, error)
}

// HTTPRecordStore implements RecordStore against a realtime-database style
// JSON API: records live under {base}/users/{uid}/records, creates return
// the assigned ID, patches update individual fields in place.
type HTTPRecordStore struct {
	baseURL string
	headers HeaderSource
	client  *http.Client
}

func NewHTTPRecordStore(baseURL string, headers HeaderSource) *HTTPRecordStore {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	return &HTTPRecordStore{
		baseURL: baseURL,
		headers: headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

func (s *HTTPRecordStore) recordsURL(userID string) string {
	return fmt.Sprintf("%s/users/%s/records", s.baseURL, userID)
}

func (s *HTTPRecordStore) List(ctx context.Context, userID string, limit int) ([]models.AnalysisRecord, error) {
	url := s.recordsURL(userID)
	if limit > 0 {
		url = fmt.Sprintf("%s?limit=%d", url, limit)
	}

	body, err := s.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	// The store returns records as an object keyed by ID.
	var keyed map[string]models.AnalysisRecord
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, fmt.Errorf("decode record list: %w", err)
	}

	records := make([]models.AnalysisRecord, 0, len(keyed))
	for id, rec := range keyed {
		rec.ID = id
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *HTTPRecordStore) Create(ctx context.Context, userID string, record models.AnalysisRecord) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	body, err := s.do(ctx, http.MethodPost, s.recordsURL(userID), payload)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("store returned no record ID")
	}
	return created.ID, nil
}

func (s *HTTPRecordStore) Patch(ctx context.Context, userID, recordID string, fields map[string]interface{}) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	_, err = s.do(ctx, http.MethodPatch, s.recordsURL(userID)+"/"+recordID, payload)
	return err
}

func (s *HTTPRecordStore) Delete(ctx context.Context, userID, recordID string) error {
	_, err := s.do(ctx, http.MethodDelete, s.recordsURL(userID)+"/"+recordID, nil)
	return err
}

func (s *HTTPRecordStore) DeleteAll(ctx context.Context, userID string) error {
	_, err := s.do(ctx, http.MethodDelete, s.recordsURL(userID), nil)
	return err
}

// do executes a request with bounded retries: transient transport failures
// and 5xx responses are retried up to 3 attempts with linear backoff, 4xx
// responses are not.
func (s *HTTPRecordStore) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	headers, err := s.headers.Headers(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, err
		}
		for key, values := range headers {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrRecordNotFound
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, fmt.Errorf("store rejected request: status code %d", resp.StatusCode)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("store error: status code %d", resp.StatusCode)
			continue
		case readErr != nil:
			lastErr = readErr
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}
