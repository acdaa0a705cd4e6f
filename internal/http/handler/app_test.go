package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"beacon.app/feedback/internal/http/handler"
	"beacon.app/feedback/internal/http/middleware"
	"beacon.app/feedback/internal/model"
)

var _ = Describe("AppHandler", func() {
	var (
		router *gin.Engine
		apps   *mockAppService
	)

	BeforeEach(func() {
		apps = &mockAppService{}
		router = gin.New()
		router.Use(middleware.Recovery())
		v1 := router.Group("/api/v1", middleware.RequireApp(apps))
		v1.GET("/config", handler.NewAppHandler(apps).Config)
	})

	get := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns the app config", func() {
		apps.authenticateFn = func(context.Context, string) (*model.App, error) {
			return &model.App{ID: 7, ForceAuth: true}, nil
		}

		w := get("Bearer tok_123")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"force_auth":true}`))
	})

	It("rejects a missing bearer token", func() {
		w := get("")

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(decodeEnvelope(w).Error.Code).To(Equal(4001))
	})

	It("rejects a non-bearer authorization header", func() {
		w := get("Basic dXNlcjpwYXNz")

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns 500 when the app lookup fails", func() {
		apps.authenticateFn = func(context.Context, string) (*model.App, error) {
			return nil, errors.New("db down")
		}

		w := get("Bearer tok_123")

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(decodeEnvelope(w).Error.Code).To(Equal(5000))
	})
})

var _ = Describe("HealthHandler", func() {
	It("reports ready when every dependency answers", func() {
		h := handler.NewHealthHandler(map[string]handler.Pinger{"postgres": &mockPinger{}})
		router := gin.New()
		router.GET("/ready", h.Ready)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("names the dependency that is down", func() {
		h := handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": &mockPinger{},
			"redis":    &mockPinger{err: errors.New("connection refused")},
		})
		router := gin.New()
		router.GET("/ready", h.Ready)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(decodeEnvelope(w).Error.Message).To(Equal("redis unavailable"))
	})
})

var _ = Describe("Recovery", func() {
	It("answers a panic with a 500 envelope", func() {
		router := gin.New()
		router.Use(middleware.Recovery())
		router.GET("/boom", func(*gin.Context) { panic("nil map") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(decodeEnvelope(w).Error.Code).To(Equal(5000))
	})
})
