package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/middleware"
	"github.com/taskhive/taskhive/internal/services"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/response"
)

// AuthHandler exposes the token exchange and identity endpoints.
type AuthHandler struct {
	resolver *iauth.Resolver
	jwt      *iauth.JWTService
	users    *services.UserService
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, resolver *iauth.Resolver, jwt *iauth.JWTService) (*AuthHandler, error) {
	if resolver == nil {
		return nil, errors.New("auth handler: resolver is required")
	}
	if jwt == nil {
		return nil, errors.New("auth handler: jwt service is required")
	}
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{resolver: resolver, jwt: jwt, users: users}, nil
}

type googleExchangeRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// Google exchanges a verified Google ID token for a self-issued session token.
func (h *AuthHandler) Google(c *gin.Context) {
	var req googleExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewValidation("id_token is required"))
		return
	}

	identity, err := h.resolver.Resolve(requestContext(c), req.IDToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.users.GetByUID(requestContext(c), identity.UID)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateSessionToken(user)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "issue session token"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Me returns the authenticated caller's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrNoToken)
		return
	}

	user, err := h.users.GetByUID(requestContext(c), identity.UID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}
