package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

const googleIssuer = "https://accounts.google.com"

// GoogleIdentity is the verified payload of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleVerifier validates third-party identity tokens against the provider's
// published keys. Implementations must be safe for concurrent use.
type GoogleVerifier interface {
	Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error)
}

// GoogleVerifierOptions configures the Google ID token verifier.
type GoogleVerifierOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

type googleVerifier struct {
	verifier *oidc.IDTokenVerifier
	timeout  time.Duration
}

// NewGoogleVerifier discovers Google's OIDC configuration and returns a
// verifier bound to the supplied OAuth client ID (the expected audience).
func NewGoogleVerifier(ctx context.Context, clientID string, opts GoogleVerifierOptions) (GoogleVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("google verifier: client id is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	if opts.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, opts.HTTPClient)
	}

	discoveryCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	provider, err := oidc.NewProvider(discoveryCtx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google verifier: discovery failed: %w", err)
	}

	return &googleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		timeout:  opts.Timeout,
	}, nil
}

func (g *googleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	idToken, err := g.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("google verifier: verify id token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google verifier: decode claims: %w", err)
	}

	if idToken.Subject == "" || claims.Email == "" {
		return nil, errors.New("google verifier: token missing subject or email")
	}

	return &GoogleIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
