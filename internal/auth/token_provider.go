package auth

import (
	"context"
	"net/http"

	apperrors "go-damage-sync/internal/errors"
	"go-damage-sync/internal/logger"
	"go-damage-sync/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Principal identifies a signed-in user.
type Principal struct {
	UserID string
	Email  string
}

// State carries the current auth state. It is constructor-injected into
// every component that needs credentials; there is no package-level
// singleton to mutate.
type State struct {
	Principal *Principal
}

// TokenIssuer obtains a fresh bearer token for a principal. The issuer
// manages token freshness internally; the client never runs its own expiry
// timer and simply asks again on each call that needs headers.
type TokenIssuer interface {
	IssueToken(ctx context.Context, principal Principal) (string, error)
}

// TokenCache durably stores the last issued token so a restart does not
// force re-authentication before the first network call.
type TokenCache interface {
	Load() (*models.AuthToken, error)
	Store(token models.AuthToken) error
}

// TokenProvider builds request headers from the current credential.
type TokenProvider struct {
	issuer    TokenIssuer
	cache     TokenCache
	state     *State
	devBypass bool
}

func NewTokenProvider(issuer TokenIssuer, cache TokenCache, state *State, devBypass bool) *TokenProvider {
	return &TokenProvider{
		issuer:    issuer,
		cache:     cache,
		state:     state,
		devBypass: devBypass,
	}
}

// Headers returns the headers for an authenticated backend call. With no
// principal present it falls back to the development bypass header when the
// flag is enabled, and signals an auth error otherwise.
func (p *TokenProvider) Headers(ctx context.Context) (http.Header, error) {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	if p.state == nil || p.state.Principal == nil {
		if p.devBypass {
			headers.Set("X-Dev-Bypass", "true")
			return headers, nil
		}
		return nil, apperrors.NewAuthError("no authenticated user and dev bypass disabled", nil)
	}

	token, err := p.issuer.IssueToken(ctx, *p.state.Principal)
	if err != nil {
		return nil, apperrors.NewAuthError("failed to obtain bearer token", err)
	}

	headers.Set("Authorization", "Bearer "+token)

	// Cache write failures are non-fatal; the token is already usable.
	if p.cache != nil {
		cached := models.AuthToken{Value: token, Holder: holderFromToken(token)}
		if err := p.cache.Store(cached); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"user_id": p.state.Principal.UserID,
			}).Warn("Failed to cache auth token")
		}
	}

	return headers, nil
}

// CachedToken returns the durably cached token, if any.
func (p *TokenProvider) CachedToken() *models.AuthToken {
	if p.cache == nil {
		return nil
	}
	token, err := p.cache.Load()
	if err != nil {
		logger.WithError(err).Debug("No cached auth token available")
		return nil
	}
	return token
}

// holderFromToken extracts the subject claim without verifying the
// signature. Verification is the issuer's responsibility; the holder is
// only used to label the cached credential.
func holderFromToken(token string) string {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return subject
}
