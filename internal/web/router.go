// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the auth service over HTTP with gin.
package web

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// RouterConfig wires the router.
type RouterConfig struct {
	Service Authenticator
	Cookies CookiePolicy
	CORS    CORSConfig
	Logger  *slog.Logger
	// Metrics is optional.
	Metrics RequestObserver
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(Recovery(logger), RequestID(), AccessLog(logger))
	if cfg.Metrics != nil {
		r.Use(Metrics(cfg.Metrics))
	}
	r.Use(CORS(cfg.CORS))

	r.GET("/", Index)
	r.GET("/health", Health)

	h := NewAuthHandler(cfg.Service, cfg.Cookies, logger)
	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", h.Me)

	protected := r.Group("", RequireSession(cfg.Service, logger))
	protected.GET("/dashboard", Dashboard)

	return r
}
