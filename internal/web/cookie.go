// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/holomush/authd/internal/auth"
)

// SessionCookieName is the cookie holding the session token.
const SessionCookieName = "sid"

// CookiePolicy decides the attributes of the session cookie.
type CookiePolicy struct {
	// Production requires a cross-site (SameSite=None) Secure cookie.
	Production bool
	// MaxAge is the cookie lifetime. Zero means auth.SessionTTL.
	MaxAge time.Duration
}

func (p CookiePolicy) maxAge() time.Duration {
	if p.MaxAge <= 0 {
		return auth.SessionTTL
	}
	return p.MaxAge
}

func (p CookiePolicy) cookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if p.Production {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Production,
		SameSite: sameSite,
	}
}

// Set writes the session cookie for token.
func (p CookiePolicy) Set(c *gin.Context, token string) {
	http.SetCookie(c.Writer, p.cookie(token, int(p.maxAge()/time.Second)))
}

// Clear expires the session cookie on the client.
func (p CookiePolicy) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, p.cookie("", -1))
}

// sessionToken returns the token from the request cookie, or "".
func sessionToken(c *gin.Context) string {
	token, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return token
}
