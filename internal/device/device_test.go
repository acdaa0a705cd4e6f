package device

import (
	"errors"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func fakeHost(env map[string]string, ifaces []net.Interface) *Host {
	return &Host{
		lookupEnv: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
		hostname:   func() (string, error) { return "build-box", nil },
		interfaces: func() ([]net.Interface, error) { return ifaces, nil },
	}
}

var _ = Describe("Host", func() {
	It("prefers environment overrides", func() {
		h := fakeHost(map[string]string{
			"BEACON_DEVICE_OS_NAME":    "android",
			"BEACON_DEVICE_OS_VERSION": "14",
			"BEACON_DEVICE_VENDOR":     "Google",
			"BEACON_DEVICE_MODEL":      "Pixel 8",
			"BEACON_DEVICE_TYPE":       "mobile",
		}, nil)

		info := Collect(h)

		Expect(info.OS.Name).To(Equal("android"))
		Expect(info.OS.Version).To(Equal("14"))
		Expect(info.Device.Vendor).To(Equal("Google"))
		Expect(info.Device.Model).To(Equal("Pixel 8"))
		Expect(info.Device.Type).To(Equal("mobile"))
	})

	It("reads battery overrides and falls back on bad values", func() {
		h := fakeHost(map[string]string{
			"BEACON_DEVICE_BATTERY":        "42",
			"BEACON_DEVICE_BATTERY_STATUS": "false",
		}, nil)
		Expect(h.BatteryPercentage()).To(Equal(42))
		Expect(h.BatteryCharging()).To(BeFalse())

		h = fakeHost(map[string]string{"BEACON_DEVICE_BATTERY": "full"}, nil)
		Expect(h.BatteryPercentage()).To(Equal(100))
		Expect(h.BatteryCharging()).To(BeTrue())
	})

	It("falls back to the hostname for the model", func() {
		h := fakeHost(nil, nil)

		Expect(h.Model()).To(Equal("build-box"))
		Expect(h.DeviceType()).To(Equal(TypeDesktop))
	})

	It("reports unknown when the hostname cannot be read", func() {
		h := fakeHost(nil, nil)
		h.hostname = func() (string, error) { return "", errors.New("no uts namespace") }

		Expect(h.Model()).To(Equal("unknown"))
	})

	DescribeTable("classifies network connectivity",
		func(ifaces []net.Interface, want string) {
			Expect(fakeHost(nil, ifaces).NetworkConnectivity()).To(Equal(want))
		},
		Entry("no interfaces", []net.Interface(nil), ConnectivityUnknown),
		Entry("loopback only", []net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}}, ConnectivityUnknown),
		Entry("wireless", []net.Interface{
			{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
			{Name: "wlp2s0", Flags: net.FlagUp},
		}, ConnectivityWifi),
		Entry("wired", []net.Interface{{Name: "eth0", Flags: net.FlagUp}}, ConnectivityEthernet),
		Entry("interface down", []net.Interface{{Name: "eth0"}}, ConnectivityUnknown),
	)

	DescribeTable("derives the language from LANG",
		func(lang, want string) {
			Expect(fakeHost(map[string]string{"LANG": lang}, nil).Language()).To(Equal(want))
		},
		Entry("posix locale", "es_ES.UTF-8", "es"),
		Entry("bare language", "fr", "fr"),
		Entry("unset", "", "en"),
	)
})

var _ = Describe("Headers", func() {
	It("composes the SDK headers", func() {
		h := fakeHost(map[string]string{
			"LANG":                     "de_DE.UTF-8",
			"BEACON_DEVICE_OS_NAME":    "linux",
			"BEACON_DEVICE_OS_VERSION": "6.8",
			"BEACON_DEVICE_VENDOR":     "Framework",
			"BEACON_DEVICE_MODEL":      "Laptop 13",
		}, nil)
		app := App{PackageName: "app.beacon.cli", Version: 12, VersionName: "1.2.0", SDKVersion: "GO_1.0.0"}

		headers := Headers(h, app)

		Expect(headers.Get("Accept-Language")).To(Equal("de"))
		Expect(headers.Get("x-sdk-version")).To(Equal("GO_1.0.0"))
		Expect(headers.Get("x-app-version")).To(Equal("1.2.0"))
		Expect(headers.Get("x-os-name")).To(Equal("linux"))
		Expect(headers.Get("x-os-version")).To(Equal("6.8"))
		Expect(headers.Get("x-device-vendor")).To(Equal("Framework"))
		Expect(headers.Get("x-device-model")).To(Equal("Laptop 13"))
		Expect(headers.Get("x-package-name")).To(Equal("app.beacon.cli"))
		Expect(headers.Get("x-package-version")).To(Equal("12"))
		Expect(headers.Get("x-os-minsdkversion")).NotTo(BeEmpty())
		Expect(headers.Get("x-os-targetsdkversion")).NotTo(BeEmpty())
	})

	It("maps app metadata to package info", func() {
		app := App{PackageName: "app.beacon.cli", Version: 12, VersionName: "1.2.0"}

		info := app.PackageInfo()

		Expect(info.Name).To(Equal("app.beacon.cli"))
		Expect(info.Version).To(Equal(12))
		Expect(info.VersionName).To(Equal("1.2.0"))
	})
})
