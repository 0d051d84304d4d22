package validation

import "testing"

func TestValidateBaseURL(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "valid https", baseURL: "https://api.example.com", wantErr: false},
		{name: "valid http with path", baseURL: "http://api.example.com/v1", wantErr: false},
		{name: "empty", baseURL: "", wantErr: true},
		{name: "whitespace only", baseURL: "   ", wantErr: true},
		{name: "bad scheme", baseURL: "ftp://api.example.com", wantErr: true},
		{name: "no host", baseURL: "https://", wantErr: true},
		{name: "trailing slash", baseURL: "https://api.example.com/v1/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateBaseURL(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBaseURL(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}
