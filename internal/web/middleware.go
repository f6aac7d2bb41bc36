// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/logging"
	"github.com/holomush/authd/pkg/errutil"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

const identityKey = "authd.identity"

// maxRequestIDLen caps client-supplied request IDs.
const maxRequestIDLen = 128

// RequestObserver records request latency.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// RequestID propagates X-Request-ID, minting a UUID when the client sent
// none, and stores it in the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// routeLabel is the matched route template, so unknown paths share a label.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// AccessLog writes one record per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("route", routeLabel(c)),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// Metrics observes request latency on obs.
func Metrics(obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obs.ObserveRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}

// Recovery turns a panic into a 500 with the generic message.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "panic serving request",
			"route", routeLabel(c),
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, messageResponse{Message: msgInternal})
	})
}

// CORSConfig lists the browser origins allowed to call the API with
// credentials.
type CORSConfig struct {
	Origins []string
	// Preview matches additional origins, e.g. per-branch deploy previews.
	Preview *regexp.Regexp
}

// Allows reports whether origin may make credentialed requests.
func (cc CORSConfig) Allows(origin string) bool {
	for _, o := range cc.Origins {
		if o == origin {
			return true
		}
	}
	return cc.Preview != nil && cc.Preview.MatchString(origin)
}

// CORS applies cc. Requests without an Origin header pass through;
// requests from other origins are refused with 403.
func CORS(cc CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  cc.Allows,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// RequireSession admits only requests carrying a live session cookie and
// stores the caller's identity for IdentityFromContext.
func RequireSession(svc Authenticator, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		identity, err := svc.Authenticate(c.Request.Context(), sessionToken(c))
		if err != nil {
			if auth.ErrorCode(err) == auth.CodeUnauthorized {
				c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Message: msgUnauthorized})
				return
			}
			errutil.LogErrorContext(c.Request.Context(), logger, "session check failed", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, messageResponse{Message: msgInternal})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFromContext returns the identity stored by RequireSession.
func IdentityFromContext(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok && identity != nil
}
