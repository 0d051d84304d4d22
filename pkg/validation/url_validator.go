package validation

import (
	"net/url"
	"strings"

	apperrors "go-damage-sync/internal/errors"
)

// URLValidator checks the base URLs of the external services this layer
// talks to before any request is built against them.
type URLValidator struct {
	allowedSchemes []string
}

// NewURLValidator creates a validator accepting http and https bases
func NewURLValidator() *URLValidator {
	return &URLValidator{allowedSchemes: []string{"http", "https"}}
}

// ValidateBaseURL validates a service base URL
func (v *URLValidator) ValidateBaseURL(baseURL string) error {
	if strings.TrimSpace(baseURL) == "" {
		return apperrors.NewValidationError("base URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return apperrors.NewValidationError("invalid base URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("base URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("base URL must have a valid host", nil)
	}

	if strings.HasSuffix(parsedURL.Path, "/") {
		return apperrors.NewValidationError("base URL must not end with a slash", nil)
	}

	return nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}
