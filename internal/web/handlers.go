// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/pkg/errutil"
)

// Client-facing messages.
const (
	msgCredentialsRequired = "Email and password are required"
	msgEmailTaken          = "Email already registered"
	msgInvalidCredentials  = "Invalid credentials"
	msgInternal            = "Internal server error"
	msgLoggedOut           = "Logged out"
	msgLogoutFailed        = "Failed to logout"
	msgUnauthorized        = "Unauthorized"
	msgDashboard           = "Welcome to your dashboard"
)

// Authenticator is the auth service as seen by the HTTP layer.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	WhoAmI(ctx context.Context, token string) (auth.WhoAmI, error)
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

var _ Authenticator = (*auth.Service)(nil)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User auth.Identity `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	svc     Authenticator
	cookies CookiePolicy
	logger  *slog.Logger
}

// NewAuthHandler returns a handler backed by svc.
func NewAuthHandler(svc Authenticator, cookies CookiePolicy, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{svc: svc, cookies: cookies, logger: logger}
}

// bindCredentials reads the JSON body. A body that does not decode counts
// as empty, which the service rejects as invalid input.
func bindCredentials(c *gin.Context) credentialsRequest {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return credentialsRequest{}
	}
	return req
}

// statusFor maps a service error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case auth.CodeInvalidInput:
		return http.StatusBadRequest
	case auth.CodeEmailTaken:
		return http.StatusConflict
	case auth.CodeInvalidCredentials, auth.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client message for a failed register or login.
func messageFor(code string) string {
	switch code {
	case auth.CodeInvalidInput:
		return msgCredentialsRequired
	case auth.CodeEmailTaken:
		return msgEmailTaken
	case auth.CodeInvalidCredentials:
		return msgInvalidCredentials
	case auth.CodeUnauthorized:
		return msgUnauthorized
	default:
		return msgInternal
	}
}

func (h *AuthHandler) fail(c *gin.Context, msg string, err error) {
	code := auth.ErrorCode(err)
	if code == auth.CodeInternal {
		errutil.LogErrorContext(c.Request.Context(), h.logger.With("route", c.FullPath()), msg, err)
	}
	c.JSON(statusFor(code), messageResponse{Message: messageFor(code)})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	req := bindCredentials(c)
	user, err := h.svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "register failed", err)
		return
	}
	c.JSON(http.StatusCreated, userResponse{User: user.Identity()})
}

// Login handles POST /auth/login and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	req := bindCredentials(c)
	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "login failed", err)
		return
	}
	h.cookies.Set(c, result.Token)
	c.JSON(http.StatusOK, userResponse{User: result.User})
}

// Logout handles POST /auth/logout. It succeeds without a session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), sessionToken(c)); err != nil {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "logout failed", err)
		c.JSON(http.StatusInternalServerError, messageResponse{Message: msgLogoutFailed})
		return
	}
	h.cookies.Clear(c)
	c.JSON(http.StatusOK, messageResponse{Message: msgLoggedOut})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	who, err := h.svc.WhoAmI(c.Request.Context(), sessionToken(c))
	if err != nil {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "whoami failed", err)
		c.JSON(http.StatusInternalServerError, messageResponse{Message: msgInternal})
		return
	}
	if !who.Authenticated {
		c.JSON(http.StatusUnauthorized, auth.WhoAmI{})
		return
	}
	c.JSON(http.StatusOK, who)
}

// Dashboard handles GET /dashboard behind RequireSession.
func Dashboard(c *gin.Context) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, messageResponse{Message: msgUnauthorized})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": msgDashboard,
		"user":    identity,
	})
}

// Index handles GET / with a description of the API.
func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Auth System API",
		"status":  "running",
		"endpoints": gin.H{
			"health": "/health",
			"auth": gin.H{
				"register": "POST /auth/register",
				"login":    "POST /auth/login",
				"logout":   "POST /auth/logout",
				"me":       "GET /auth/me",
			},
			"dashboard": "GET /dashboard (protected)",
		},
	})
}

// Health handles GET /health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
