// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/web"
)

// client is a browser-like HTTP client with its own cookie jar.
type client struct {
	http *http.Client
}

func newClient() *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, env.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return resp.StatusCode, out
}

func mustURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	Expect(err).NotTo(HaveOccurred())
	return u
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func userEmail(body map[string]any) string {
	user, ok := body["user"].(map[string]any)
	Expect(ok).To(BeTrue(), "response has no user: %v", body)
	email, _ := user["email"].(string)
	return email
}

var _ = Describe("Session authentication", func() {
	BeforeEach(func() {
		env.resetData()
	})

	Describe("full browser flow", func() {
		It("registers, logs in, reaches the dashboard and logs out", func() {
			c := newClient()

			status, body := c.do(http.MethodPost, "/auth/register", credentials("  Alice@Example.COM ", "pw1"))
			Expect(status).To(Equal(http.StatusCreated))
			Expect(userEmail(body)).To(Equal("alice@example.com"))

			status, body = c.do(http.MethodPost, "/auth/register", credentials("alice@example.com", "other"))
			Expect(status).To(Equal(http.StatusConflict))
			Expect(body["message"]).To(Equal("Email already registered"))

			status, body = c.do(http.MethodPost, "/auth/login", credentials("alice@example.com", "wrong"))
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal("Invalid credentials"))

			status, body = c.do(http.MethodPost, "/auth/login", credentials("ALICE@example.com", "pw1"))
			Expect(status).To(Equal(http.StatusOK))
			Expect(userEmail(body)).To(Equal("alice@example.com"))

			status, body = c.do(http.MethodGet, "/auth/me", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["authenticated"]).To(BeTrue())
			Expect(userEmail(body)).To(Equal("alice@example.com"))

			status, body = c.do(http.MethodGet, "/dashboard", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["message"]).To(Equal("Welcome to your dashboard"))

			status, body = c.do(http.MethodPost, "/auth/logout", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["message"]).To(Equal("Logged out"))

			status, body = c.do(http.MethodGet, "/auth/me", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["authenticated"]).To(BeFalse())

			status, _ = c.do(http.MethodGet, "/dashboard", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("persists only the token hash", func() {
			c := newClient()
			status, _ := c.do(http.MethodPost, "/auth/register", credentials("bob@example.com", "pw"))
			Expect(status).To(Equal(http.StatusCreated))
			status, _ = c.do(http.MethodPost, "/auth/login", credentials("bob@example.com", "pw"))
			Expect(status).To(Equal(http.StatusOK))

			var token string
			for _, ck := range c.http.Jar.Cookies(mustURL(env.server.URL)) {
				if ck.Name == web.SessionCookieName {
					token = ck.Value
				}
			}
			Expect(token).NotTo(BeEmpty())

			var stored string
			Expect(env.pool.QueryRow(env.ctx, `SELECT token_hash FROM web_sessions`).Scan(&stored)).To(Succeed())
			Expect(stored).To(Equal(auth.HashSessionToken(token)))
			Expect(stored).NotTo(Equal(token))

			var passwordHash string
			Expect(env.pool.QueryRow(env.ctx, `SELECT password_hash FROM users`).Scan(&passwordHash)).To(Succeed())
			Expect(passwordHash).To(HavePrefix("$2a$10$"))
		})
	})

	Describe("independent sessions", func() {
		It("keeps other devices logged in after one logs out", func() {
			laptop, phone := newClient(), newClient()
			status, _ := laptop.do(http.MethodPost, "/auth/register", credentials("carol@example.com", "pw"))
			Expect(status).To(Equal(http.StatusCreated))

			for _, c := range []*client{laptop, phone} {
				status, _ = c.do(http.MethodPost, "/auth/login", credentials("carol@example.com", "pw"))
				Expect(status).To(Equal(http.StatusOK))
			}

			status, _ = laptop.do(http.MethodPost, "/auth/logout", nil)
			Expect(status).To(Equal(http.StatusOK))

			status, _ = laptop.do(http.MethodGet, "/auth/me", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
			status, _ = phone.do(http.MethodGet, "/auth/me", nil)
			Expect(status).To(Equal(http.StatusOK))
		})
	})

	Describe("concurrent registration", func() {
		It("creates exactly one account for one email", func() {
			const workers = 8
			statuses := make(chan int, workers)
			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					status, _ := newClient().do(http.MethodPost, "/auth/register", credentials("race@example.com", "pw"))
					statuses <- status
				}()
			}
			wg.Wait()
			close(statuses)

			counts := map[int]int{}
			for s := range statuses {
				counts[s]++
			}
			Expect(counts[http.StatusCreated]).To(Equal(1))
			Expect(counts[http.StatusConflict]).To(Equal(workers - 1))

			var n int
			Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM users`).Scan(&n)).To(Succeed())
			Expect(n).To(Equal(1))
		})
	})

	Describe("expired sessions", func() {
		It("rejects and sweeps sessions past their expiry", func() {
			c := newClient()
			status, _ := c.do(http.MethodPost, "/auth/register", credentials("dave@example.com", "pw"))
			Expect(status).To(Equal(http.StatusCreated))
			status, _ = c.do(http.MethodPost, "/auth/login", credentials("dave@example.com", "pw"))
			Expect(status).To(Equal(http.StatusOK))

			_, err := env.pool.Exec(env.ctx, `UPDATE web_sessions SET expires_at = now() - interval '1 minute'`)
			Expect(err).NotTo(HaveOccurred())

			status, _ = c.do(http.MethodGet, "/dashboard", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))

			_, err = env.pool.Exec(env.ctx, `INSERT INTO web_sessions (id, token_hash, user_id, email, created_at, expires_at)
				SELECT '01J00000000000000000000000', 'stale', id, email, now() - interval '9 hours', now() - interval '1 hour'
				FROM users`)
			Expect(err).NotTo(HaveOccurred())

			n, err := env.tokens.SweepExpired(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">=", 1))

			var remaining int
			Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM web_sessions`).Scan(&remaining)).To(Succeed())
			Expect(remaining).To(BeZero())
		})
	})

	Describe("service endpoints", func() {
		It("describes itself and reports health", func() {
			c := newClient()
			status, body := c.do(http.MethodGet, "/", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("running"))

			status, body = c.do(http.MethodGet, "/health", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("ok"))
		})
	})
})
