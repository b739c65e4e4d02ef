package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive/internal/models"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/logger"
	"github.com/taskhive/taskhive/pkg/metrics"
)

const defaultUpsertTimeout = 5 * time.Second

// Identity is a resolved, authenticated caller.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Provider    string `json:"provider"`
}

// ResolverOption customises Resolver behaviour.
type ResolverOption func(*Resolver)

// WithResolverClock injects a custom clock, primarily for testing.
func WithResolverClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// Resolver turns an inbound credential into a stable user identity. The
// self-issued session token is the fast path; a Google ID token is accepted
// as a fallback so clients holding only the provider credential are not
// forced to re-authenticate.
type Resolver struct {
	db     *gorm.DB
	jwt    *JWTService
	google GoogleVerifier
	now    func() time.Time
	log    *zap.Logger
}

// NewResolver constructs a Resolver. The Google verifier may be nil, in which
// case only self-issued tokens are accepted.
func NewResolver(db *gorm.DB, jwtService *JWTService, google GoogleVerifier, opts ...ResolverOption) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("resolver: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("resolver: jwt service is required")
	}

	resolver := &Resolver{
		db:     db,
		jwt:    jwtService,
		google: google,
		now:    time.Now,
		log:    logger.WithModule("auth"),
	}

	for _, opt := range opts {
		opt(resolver)
	}

	return resolver, nil
}

// Resolve verifies the credential and upserts the User record. Self-issued
// verification runs first; the Google fallback is attempted only when the
// credential is structurally a signed token, so obviously-wrong values are
// never sent to the remote verifier.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, apperrors.ErrNoToken
	}

	claims, jwtErr := r.jwt.ValidateSessionToken(credential)
	if jwtErr == nil {
		metrics.AuthAttempts.WithLabelValues("jwt", "success").Inc()
		identity := &Identity{
			UID:         claims.UID,
			Email:       claims.Email,
			DisplayName: claims.DisplayName,
			Provider:    defaultProvider(claims.Provider),
		}
		if err := r.upsertUser(ctx, identity); err != nil {
			return nil, err
		}
		return identity, nil
	}
	metrics.AuthAttempts.WithLabelValues("jwt", "failure").Inc()

	// An expired token we issued ourselves is conclusive; do not bother the
	// remote verifier with it.
	if errors.Is(jwtErr, jwt.ErrTokenExpired) {
		return nil, apperrors.ErrTokenExpired.WithInternal(jwtErr)
	}

	if r.google == nil || !looksLikeSignedToken(credential) {
		return nil, apperrors.ErrInvalidToken.WithInternal(jwtErr)
	}

	google, err := r.google.Verify(ctx, credential)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google", "failure").Inc()
		r.log.Debug("google fallback verification failed", zap.Error(err))
		return nil, apperrors.ErrInvalidToken.WithInternal(err)
	}
	metrics.AuthAttempts.WithLabelValues("google", "success").Inc()

	identity := &Identity{
		UID:         google.Subject,
		Email:       google.Email,
		DisplayName: defaultDisplayName(google.Name, google.Email),
		PhotoURL:    google.Picture,
		Provider:    "google",
	}
	if err := r.upsertUser(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// upsertUser creates the user on first sight and refreshes the mutable
// profile fields plus last_login_at on every later resolution.
func (r *Resolver) upsertUser(ctx context.Context, identity *Identity) error {
	ctx, cancel := context.WithTimeout(ctx, defaultUpsertTimeout)
	defer cancel()

	now := r.now().UTC()

	var existing models.User
	err := r.db.WithContext(ctx).Where("uid = ?", identity.UID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user := models.User{
			UID:         identity.UID,
			Email:       strings.ToLower(identity.Email),
			DisplayName: identity.DisplayName,
			PhotoURL:    identity.PhotoURL,
			Provider:    identity.Provider,
			LastLoginAt: &now,
		}
		if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
			return apperrors.Wrap(err, "create user")
		}
		return nil
	case err != nil:
		return apperrors.ErrDatabaseUnavailable.WithInternal(err)
	}

	updates := map[string]any{"last_login_at": now}
	if identity.DisplayName != "" {
		updates["display_name"] = identity.DisplayName
	}
	if identity.PhotoURL != "" {
		updates["photo_url"] = identity.PhotoURL
	}

	if err := r.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return apperrors.Wrap(err, "refresh user profile")
	}
	return nil
}

// looksLikeSignedToken reports whether the credential has the three
// dot-separated segments of a signed identity token.
func looksLikeSignedToken(credential string) bool {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

func defaultProvider(provider string) string {
	if provider == "" {
		return "google"
	}
	return provider
}

func defaultDisplayName(name, email string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return email
}
