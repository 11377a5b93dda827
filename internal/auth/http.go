package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// HTTPVerifierConfig configures an HTTPVerifier.
type HTTPVerifierConfig struct {
	// IntrospectionURL is called with `token` form-encoded in the body.
	IntrospectionURL string
	// ClientID/ClientSecret/TokenURL authenticate this server to the
	// introspection endpoint itself, via OAuth2 client-credentials. Leave
	// ClientID empty to call IntrospectionURL unauthenticated.
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

type introspectionResponse struct {
	Active  bool   `json:"active"`
	Subject string `json:"sub"`
}

// HTTPVerifier resolves tokens against a remote introspection endpoint
// (e.g. RFC 7662), the production path named in spec §4.E/§9 for
// centralizing token issuance outside this service.
type HTTPVerifier struct {
	client *http.Client
	url    string
}

// NewHTTPVerifier builds a Verifier backed by an HTTP introspection endpoint.
func NewHTTPVerifier(cfg HTTPVerifierConfig) *HTTPVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var client *http.Client
	if cfg.ClientID != "" {
		ccCfg := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = ccCfg.Client(context.Background())
		client.Timeout = timeout
	} else {
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPVerifier{client: client, url: cfg.IntrospectionURL}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (string, error) {
	body := strings.NewReader(url.Values{"token": {token}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, body)
	if err != nil {
		return "", &TransientFailure{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", &TransientFailure{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", &TransientFailure{Err: fmt.Errorf("introspection endpoint returned %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", InvalidToken
	}

	var parsed introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &TransientFailure{Err: fmt.Errorf("decode introspection response: %w", err)}
	}
	if !parsed.Active || parsed.Subject == "" {
		return "", InvalidToken
	}
	return parsed.Subject, nil
}
