package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	apperrors "go-damage-sync/internal/errors"
	"go-damage-sync/internal/logger"
	"go-damage-sync/internal/observer"
	"go-damage-sync/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	// minTimeout is the floor for the analysis call; the backend is
	// compute-heavy and anything shorter just wastes quota.
	minTimeout     = 10 * time.Second
	defaultTimeout = 90 * time.Second

	// maxResponseBytes bounds how much of the backend response is read.
	maxResponseBytes = 4 << 20
)

// HeaderSource supplies authenticated request headers.
type HeaderSource interface {
	Headers(ctx context.Context) (http.Header, error)
}

// DemoContent is the locally synthesized fallback returned when the backend
// quota is exhausted and the response embeds no demo result. Placeholder
// values; configured, not hardcoded business logic.
type DemoContent struct {
	DamageType string
	Confidence float64
	Estimate   string
}

// Fetcher executes damage-analysis calls against the structured-analysis
// backend with timeout/cancellation discrimination and quota fallback.
type Fetcher struct {
	baseURL  string
	timeout  time.Duration
	maxBytes int64
	demo     DemoContent
	headers  HeaderSource
	client   *http.Client
	events   *observer.Publisher
}

// NewFetcher creates a fetcher. timeout is clamped to the floor; zero means
// the default. maxImageBytes bounds accepted uploads (zero disables the
// check). events may be nil.
func NewFetcher(baseURL string, timeout time.Duration, maxImageBytes int64, demo DemoContent, headers HeaderSource, events *observer.Publisher) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if timeout < minTimeout {
		timeout = minTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Fetcher{
		baseURL:  baseURL,
		timeout:  timeout,
		maxBytes: maxImageBytes,
		demo:     demo,
		headers:  headers,
		// No Client.Timeout: the per-call context carries the deadline so
		// the caller's cancellation and the internal timeout race cleanly.
		client: &http.Client{Transport: transport},
		events: events,
	}
}

// Analyze submits an image for damage analysis. The caller's ctx and the
// internal timeout race to abort the call; the first cause determines the
// error kind (cancelled vs timeout). Quota exhaustion resolves to a demo
// result rather than an error, so the caller always has a result object
// after a quota-limited call.
func (f *Fetcher) Analyze(ctx context.Context, imageData []byte, filename string) (*models.AnalysisResult, error) {
	if err := validateImage(imageData, f.maxBytes); err != nil {
		return nil, err
	}

	// An already-aborted signal never reaches the network.
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelledError("analysis cancelled before request", err)
	}

	headers, err := f.headers.Headers(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	f.events.Notify(ctx, observer.Event{Type: observer.AnalysisStarted, Success: true})

	result, err := f.doAnalyze(ctx, imageData, filename, headers)
	duration := time.Since(start)
	if err != nil {
		f.events.Notify(ctx, observer.Event{
			Type:         observer.AnalysisFailed,
			Duration:     duration,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	eventType := observer.AnalysisCompleted
	if result.QuotaExceeded {
		eventType = observer.QuotaFallback
	}
	f.events.Notify(ctx, observer.Event{
		Type:     eventType,
		Duration: duration,
		Success:  true,
		Metadata: map[string]interface{}{"demo_mode": result.IsDemoMode},
	})

	logger.WithFields(logrus.Fields{
		"damage_type": result.DamageType,
		"severity":    result.Severity,
		"demo_mode":   result.IsDemoMode,
		"duration_ms": duration.Milliseconds(),
	}).Info("Damage analysis completed")

	return result, nil
}

func (f *Fetcher) doAnalyze(ctx context.Context, imageData []byte, filename string, headers http.Header) (*models.AnalysisResult, error) {
	body, contentType, err := buildMultipart(imageData, filename)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build analysis request", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, f.baseURL+"/analyze", body)
	if err != nil {
		return nil, apperrors.NewInternalError("invalid analysis request", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classifyTransportError(ctx, callCtx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, f.classifyTransportError(ctx, callCtx, err)
	}

	if quotaExhausted(resp.StatusCode, payload) {
		return f.resolveQuota(payload), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("analysis failed: %s", serverMessage(payload, resp.StatusCode)), nil)
	}

	result, err := parseResult(payload)
	if err != nil {
		return nil, apperrors.NewNetworkError("analysis backend returned an unreadable payload", err)
	}
	return result, nil
}

// classifyTransportError distinguishes the first abort cause: the caller's
// signal reports cancelled, the internal deadline reports timeout, anything
// else is a transport failure.
func (f *Fetcher) classifyTransportError(parent, call context.Context, err error) *apperrors.AppError {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return apperrors.NewCancelledError("analysis cancelled by caller", err)
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return apperrors.NewCancelledError("caller deadline exceeded", err)
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return apperrors.NewTimeoutError(
			fmt.Sprintf("analysis timed out after %s", f.timeout), err)
	default:
		return apperrors.NewNetworkError("analysis request failed", err)
	}
}

// resolveQuota recovers quota exhaustion locally. A server-embedded demo
// result is returned verbatim; otherwise a deterministic local fallback is
// synthesized. Either way the caller gets a result object, never an error.
func (f *Fetcher) resolveQuota(payload []byte) *models.AnalysisResult {
	if result, err := parseResult(payload); err == nil {
		result.IsDemoMode = true
		result.QuotaExceeded = true
		return result
	}

	logger.Warn("Quota exhausted with no embedded fallback, synthesizing demo result")
	raw, _ := json.Marshal(map[string]interface{}{
		"demo_mode":   true,
		"damage_type": f.demo.DamageType,
	})
	return &models.AnalysisResult{
		DamageType:     f.demo.DamageType,
		Confidence:     f.demo.Confidence,
		Severity:       models.SeverityMinor,
		RepairEstimate: f.demo.Estimate,
		RawResult:      raw,
		IsDemoMode:     true,
		QuotaExceeded:  true,
	}
}

func quotaExhausted(statusCode int, payload []byte) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	var flags struct {
		QuotaExceeded bool `json:"quota_exceeded"`
	}
	if err := json.Unmarshal(payload, &flags); err != nil {
		return false
	}
	return flags.QuotaExceeded
}

func serverMessage(payload []byte, statusCode int) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &env); err == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return fmt.Sprintf("status code %d", statusCode)
}

func validateImage(imageData []byte, maxBytes int64) error {
	if len(imageData) == 0 {
		return apperrors.NewValidationError("image payload is empty", nil)
	}
	if maxBytes > 0 && int64(len(imageData)) > maxBytes {
		return apperrors.NewValidationError(
			fmt.Sprintf("image exceeds %d bytes", maxBytes), nil)
	}
	contentType := http.DetectContentType(imageData)
	if len(contentType) < 6 || contentType[:6] != "image/" {
		return apperrors.NewValidationError(
			fmt.Sprintf("unsupported content type %q", contentType), nil)
	}
	return nil
}

func buildMultipart(imageData []byte, filename string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
