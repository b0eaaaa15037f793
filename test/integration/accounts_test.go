// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/accountd/internal/access"
	"github.com/holomush/accountd/internal/auth"
	authpg "github.com/holomush/accountd/internal/auth/postgres"
	"github.com/holomush/accountd/internal/httpapi"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/internal/token"
)

const testSecret = "integration-secret-integration-secret"

// testEnv holds the database and API server shared by the suite.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *postgres.PostgresContainer
	pool      interface{ Close() }
	svc       *auth.Service
	server    *httptest.Server
}

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("accountd_test"),
		postgres.WithUsername("accountd"),
		postgres.WithPassword("accountd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		env.cleanup()
		return nil, err
	}
	_ = migrator.Close()

	pool, err := store.Connect(ctx, connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.pool = pool

	logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
	env.svc, err = auth.NewService(auth.ServiceConfig{
		Users:      authpg.NewUserRepository(pool),
		Pending:    authpg.NewPendingRegistrationRepository(pool),
		Transactor: authpg.NewTransactor(pool),
		Hasher:     auth.NewArgon2idHasher(),
		OTP:        auth.FixedOTPGenerator{},
		Sender:     auth.LogOTPSender{Logger: logger},
		Logger:     logger,
	})
	if err != nil {
		env.cleanup()
		return nil, err
	}

	issuer, err := token.NewIssuer([]byte(testSecret))
	if err != nil {
		env.cleanup()
		return nil, err
	}

	api, err := httpapi.New(httpapi.Config{
		Service: env.svc,
		Tokens:  issuer,
		Cookies: access.CookieOptions{SessionTTL: issuer.SessionTTL(), EmailTTL: issuer.EmailTTL()},
		Metrics: observability.NewMetrics(prometheus.NewRegistry()),
		Logger:  logger,
	})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.server = httptest.NewServer(api)
	return env, nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

// client is a browser-like caller that keeps cookies between requests.
type client struct {
	base string
	http *http.Client
}

func (e *testEnv) newClient() *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{base: e.server.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if len(raw) > 0 {
		Expect(json.Unmarshal(raw, &out)).To(Succeed())
	}
	return resp.StatusCode, out
}

func userField(body map[string]any, key string) any {
	user, ok := body["user"].(map[string]any)
	Expect(ok).To(BeTrue(), "response has no user object: %v", body)
	return user[key]
}

var _ = Describe("Account flows", Ordered, func() {
	var env *testEnv

	BeforeAll(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if env != nil {
			env.cleanup()
		}
	})

	Describe("email registration", func() {
		It("registers, verifies and rejects a second registration", func() {
			c := env.newClient()

			status, body := c.do(http.MethodPost, "/v1/auth/register", map[string]string{"email": "a@x.com"})
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["email"]).To(Equal("a@x.com"))

			status, _ = c.do(http.MethodPost, "/v1/auth/register", map[string]string{"email": "a@x.com"})
			Expect(status).To(Equal(http.StatusOK), "retry before verification is allowed")

			status, _ = c.do(http.MethodPost, "/v1/auth/register/verify", map[string]string{"otp": "000000"})
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, body = c.do(http.MethodPost, "/v1/auth/register/verify", map[string]string{"otp": auth.DefaultDevOTP})
			Expect(status).To(Equal(http.StatusCreated))
			Expect(userField(body, "role")).To(Equal("user"))
			id := userField(body, "id").(string)

			status, body = c.do(http.MethodGet, "/v1/auth/session", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(userField(body, "id")).To(Equal(id))

			status, _ = c.do(http.MethodGet, "/v1/users/"+id+"/admin", nil)
			Expect(status).To(Equal(http.StatusForbidden), "plain users cannot call admin routes")

			status, _ = env.newClient().do(http.MethodPost, "/v1/auth/register", map[string]string{"email": "a@x.com"})
			Expect(status).To(Equal(http.StatusConflict))

			isAdmin, err := env.svc.IsAdmin(env.ctx, uuid.MustParse(id))
			Expect(err).NotTo(HaveOccurred())
			Expect(isAdmin).To(BeFalse())
		})
	})

	Describe("administration", func() {
		var admin *client

		BeforeAll(func() {
			root, err := env.svc.CreateUser(env.ctx, "root@x.com", auth.RoleSuperadmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.svc.SetPassword(env.ctx, root.ID, "rootpass")).To(Succeed())

			admin = env.newClient()
			status, _ := admin.do(http.MethodPost, "/v1/auth/login",
				map[string]string{"email": "root@x.com", "password": "rootpass"})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("creates an admin who sets a password and logs in", func() {
			status, body := admin.do(http.MethodPost, "/v1/users",
				map[string]string{"email": "b@x.com", "role": "admin"})
			Expect(status).To(Equal(http.StatusCreated))
			id := userField(body, "id").(string)

			b := env.newClient()
			status, _ = b.do(http.MethodPost, "/v1/auth/login",
				map[string]string{"email": "b@x.com", "password": "anything"})
			Expect(status).To(Equal(http.StatusBadRequest), "no password has been set yet")

			Expect(env.svc.SetPassword(env.ctx, uuid.MustParse(id), "secret")).To(Succeed())

			status, body = b.do(http.MethodPost, "/v1/auth/login",
				map[string]string{"email": "b@x.com", "password": "secret"})
			Expect(status).To(Equal(http.StatusOK))
			Expect(userField(body, "role")).To(Equal("admin"))

			status, body = b.do(http.MethodGet, "/v1/users/"+id+"/admin", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["isAdmin"]).To(BeTrue())

			status, _ = b.do(http.MethodPost, "/v1/users",
				map[string]string{"email": "c@x.com", "role": "user"})
			Expect(status).To(Equal(http.StatusForbidden), "only superadmins create users")
		})

		It("looks users up by email", func() {
			status, body := admin.do(http.MethodGet, "/v1/users/email/root@x.com", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(userField(body, "role")).To(Equal("superadmin"))

			status, _ = admin.do(http.MethodGet, "/v1/users/email/nobody@x.com", nil)
			Expect(status).To(Equal(http.StatusNotFound))
		})
	})

	Describe("OTP login", func() {
		It("accepts a code exactly once", func() {
			_, err := env.svc.CreateUser(env.ctx, "otp@x.com", auth.RoleUser)
			Expect(err).NotTo(HaveOccurred())

			c := env.newClient()
			status, _ := c.do(http.MethodPost, "/v1/auth/login/otp/request", map[string]string{"email": "otp@x.com"})
			Expect(status).To(Equal(http.StatusOK))

			status, body := c.do(http.MethodPost, "/v1/auth/login/otp", map[string]string{"otp": auth.DefaultDevOTP})
			Expect(status).To(Equal(http.StatusOK))
			Expect(userField(body, "email")).To(Equal("otp@x.com"))

			status, _ = c.do(http.MethodPost, "/v1/auth/login/otp", map[string]string{"otp": auth.DefaultDevOTP})
			Expect(status).To(Equal(http.StatusUnauthorized))

			ghost := env.newClient()
			status, _ = ghost.do(http.MethodPost, "/v1/auth/login/otp/request", map[string]string{"email": "ghost@x.com"})
			Expect(status).To(Equal(http.StatusOK), "unknown emails are not revealed")
			status, _ = ghost.do(http.MethodPost, "/v1/auth/login/otp", map[string]string{"otp": auth.DefaultDevOTP})
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, _ = c.do(http.MethodPost, "/v1/auth/logout", nil)
			Expect(status).To(Equal(http.StatusOK))
			status, _ = c.do(http.MethodGet, "/v1/auth/session", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
		})
	})
})
