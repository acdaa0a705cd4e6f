package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"beacon.app/feedback/internal/apiclient"
	"beacon.app/feedback/internal/device"
)

type stubDetails struct{}

func (stubDetails) OSName() string              { return "linux" }
func (stubDetails) OSVersion() string           { return "6.8" }
func (stubDetails) Vendor() string              { return "Framework" }
func (stubDetails) Model() string               { return "Laptop 13" }
func (stubDetails) DeviceType() string          { return "desktop" }
func (stubDetails) BatteryPercentage() int      { return 80 }
func (stubDetails) BatteryCharging() bool       { return true }
func (stubDetails) NetworkConnectivity() string { return "wifi" }
func (stubDetails) ScreenResolution() string    { return "2256x1504" }
func (stubDetails) UsedRAM() string             { return "1024" }
func (stubDetails) TotalRAM() string            { return "4096" }
func (stubDetails) FreeDisk() string            { return "50" }
func (stubDetails) ScreenOrientation() string   { return "landscape" }
func (stubDetails) Language() string            { return "en" }

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		client   *apiclient.Client
		captured *http.Request
		body     []byte
	)

	BeforeEach(func() {
		captured = nil
		body = nil
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = r
			body, _ = io.ReadAll(r.Body)
			handler(w, r)
		}))
		client = apiclient.New(apiclient.Config{
			BaseURL:  server.URL + "/",
			AppToken: "app-token",
			Device:   stubDetails{},
			App:      device.App{PackageName: "app.beacon.cli", Version: 3, VersionName: "1.0.3", SDKVersion: "GO_1.0.0"},
		})
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends JSON with the SDK, auth and session headers", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"force_auth":true}`))
		}

		var out struct {
			ForceAuth bool `json:"force_auth"`
		}
		err := client.Do(context.Background(), apiclient.Request{
			Method:    http.MethodPost,
			Path:      "/api/v1/echo",
			Body:      map[string]string{"hello": "world"},
			SessionID: "123",
		}, &out)

		Expect(err).NotTo(HaveOccurred())
		Expect(out.ForceAuth).To(BeTrue())
		Expect(captured.URL.Path).To(Equal("/api/v1/echo"))
		Expect(captured.Header.Get("Authorization")).To(Equal("Bearer app-token"))
		Expect(captured.Header.Get("X-Session-ID")).To(Equal("123"))
		Expect(captured.Header.Get("X-Request-ID")).NotTo(BeEmpty())
		Expect(captured.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(captured.Header.Get("x-sdk-version")).To(Equal("GO_1.0.0"))
		Expect(captured.Header.Get("x-device-model")).To(Equal("Laptop 13"))
		Expect(captured.Header.Get("Accept-Language")).To(Equal("en"))

		var sent map[string]string
		Expect(json.Unmarshal(body, &sent)).To(Succeed())
		Expect(sent).To(HaveKeyWithValue("hello", "world"))
	})

	It("omits the session header when there is no session", func() {
		Expect(client.Do(context.Background(), apiclient.Request{Method: http.MethodGet, Path: "/x"}, nil)).To(Succeed())

		Expect(captured.Header.Get("X-Session-ID")).To(BeEmpty())
		Expect(captured.Header.Get("Content-Type")).To(BeEmpty())
	})

	It("returns the error envelope as an APIError", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":false,"error":{"code":4002,"message":"Auth required","data":{"providers":["workos"]}}}`))
		}

		err := client.Do(context.Background(), apiclient.Request{Method: http.MethodGet, Path: "/x"}, nil)

		var apiErr *apiclient.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(apiErr.Code).To(Equal(4002))
		Expect(apiErr.Message).To(Equal("Auth required"))
		Expect(apiErr.Providers).To(ConsistOf("workos"))
		Expect(apiErr.BusinessCode).To(BeTrue())
		Expect(apiclient.IsUnauthorized(err)).To(BeTrue())
	})

	It("exposes device and package info", func() {
		Expect(client.DeviceInfo().Device.Network).To(Equal("wifi"))
		Expect(client.PackageInfo().VersionName).To(Equal("1.0.3"))
	})
})

var _ = Describe("ParseError", func() {
	It("reports an empty body as a null error response", func() {
		apiErr := apiclient.ParseError(http.StatusBadGateway, nil)

		Expect(apiErr.Code).To(BeZero())
		Expect(apiErr.Message).To(Equal("Null error response"))
		Expect(apiErr.BusinessCode).To(BeFalse())
	})

	It("reports an envelope without an error as a null error response", func() {
		apiErr := apiclient.ParseError(http.StatusInternalServerError, []byte(`{"status":false}`))

		Expect(apiErr.Message).To(Equal("Null error response"))
		Expect(apiErr.BusinessCode).To(BeFalse())
	})

	It("reports an unreadable body as a parse error", func() {
		apiErr := apiclient.ParseError(http.StatusInternalServerError, []byte(`<html>oops</html>`))

		Expect(apiErr.Message).To(HavePrefix("Parse error exception: "))
		Expect(apiErr.BusinessCode).To(BeFalse())
		Expect(apiErr.Error()).To(ContainSubstring("http 500"))
	})
})
