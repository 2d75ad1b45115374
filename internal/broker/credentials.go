package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoCredentialsFile is returned when no credentials file path is given.
var ErrNoCredentialsFile = errors.New("missing required global option --credentials-file, -c")

// CredentialsError reports a credentials file that cannot be used.
type CredentialsError struct {
	Path string
	Err  error
}

func (e *CredentialsError) Error() string { return e.Err.Error() }

func (e *CredentialsError) Unwrap() error { return e.Err }

// Credentials is the trading-post credentials file. The refresh token is
// required; the access token is whatever the last token refresh cached.
type Credentials struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token,omitempty"`
}

// LoadCredentials reads and validates the credentials file at path.
func LoadCredentials(path string) (*Credentials, error) {
	if path == "" {
		return nil, ErrNoCredentialsFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CredentialsError{Path: path, Err: fmt.Errorf("could not access file at %q: %w", path, err)}
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, &CredentialsError{Path: path, Err: fmt.Errorf("could not parse JSON in %q: %w", path, err)}
	}

	if creds.RefreshToken == "" {
		return nil, &CredentialsError{Path: path, Err: fmt.Errorf("file at %q is missing the key %q", path, "refresh_token")}
	}
	return &creds, nil
}
