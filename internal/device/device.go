package device

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"beacon.app/feedback/internal/model"
)

const (
	TypeDesktop = "desktop"
	TypeServer  = "server"

	ConnectivityUnknown  = "unknown"
	ConnectivityWifi     = "wifi"
	ConnectivityEthernet = "ethernet"
)

// Details is the read-only view of the machine a report is sent from.
type Details interface {
	OSName() string
	OSVersion() string
	Vendor() string
	Model() string
	DeviceType() string
	BatteryPercentage() int
	BatteryCharging() bool
	NetworkConnectivity() string
	ScreenResolution() string
	UsedRAM() string
	TotalRAM() string
	FreeDisk() string
	ScreenOrientation() string
	Language() string
}

// App identifies the application embedding the feedback client.
type App struct {
	PackageName string
	Version     int
	VersionName string
	SDKVersion  string
}

// Host reports what a Go process can see of the machine it runs on.
// BEACON_DEVICE_* environment variables override detected values.
type Host struct {
	lookupEnv  func(string) (string, bool)
	hostname   func() (string, error)
	interfaces func() ([]net.Interface, error)
}

func NewHost() *Host {
	return &Host{
		lookupEnv:  os.LookupEnv,
		hostname:   os.Hostname,
		interfaces: net.Interfaces,
	}
}

func (h *Host) env(key, fallback string) string {
	if v, ok := h.lookupEnv("BEACON_DEVICE_" + key); ok && v != "" {
		return v
	}
	return fallback
}

func (h *Host) OSName() string {
	return h.env("OS_NAME", runtime.GOOS)
}

func (h *Host) OSVersion() string {
	return h.env("OS_VERSION", "unknown")
}

func (h *Host) Vendor() string {
	return h.env("VENDOR", runtime.GOARCH)
}

func (h *Host) Model() string {
	name, err := h.hostname()
	if err != nil || name == "" {
		name = "unknown"
	}
	return h.env("MODEL", name)
}

func (h *Host) DeviceType() string {
	return h.env("TYPE", TypeDesktop)
}

// BatteryPercentage is 100 unless overridden; hosts without a battery are
// reported as fully charged.
func (h *Host) BatteryPercentage() int {
	pct, err := strconv.Atoi(h.env("BATTERY", "100"))
	if err != nil {
		return 100
	}
	return pct
}

func (h *Host) BatteryCharging() bool {
	charging, err := strconv.ParseBool(h.env("BATTERY_STATUS", "true"))
	return err == nil && charging
}

// NetworkConnectivity classifies the first non-loopback interface that is up.
func (h *Host) NetworkConnectivity() string {
	if v := h.env("NETWORK", ""); v != "" {
		return v
	}
	ifaces, err := h.interfaces()
	if err != nil {
		return ConnectivityUnknown
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if strings.HasPrefix(iface.Name, "wl") {
			return ConnectivityWifi
		}
		return ConnectivityEthernet
	}
	return ConnectivityUnknown
}

func (h *Host) ScreenResolution() string {
	return h.env("RESOLUTION", "")
}

func (h *Host) UsedRAM() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return h.env("RAM_USED", fmt.Sprintf("%d", m.Alloc))
}

func (h *Host) TotalRAM() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return h.env("RAM_TOTAL", fmt.Sprintf("%d", m.Sys))
}

func (h *Host) FreeDisk() string {
	return h.env("DISK_FREE", "")
}

func (h *Host) ScreenOrientation() string {
	return h.env("ORIENTATION", "")
}

// Language returns the base language of $LANG ("en_US.UTF-8" -> "en").
func (h *Host) Language() string {
	raw, _ := h.lookupEnv("LANG")
	raw, _, _ = strings.Cut(raw, ".")
	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}

// Collect snapshots d into the wire representation.
func Collect(d Details) model.DeviceInfo {
	return model.DeviceInfo{
		Device: model.Device{
			Battery:       d.BatteryPercentage(),
			BatteryStatus: d.BatteryCharging(),
			DiskFree:      d.FreeDisk(),
			Model:         d.Model(),
			Network:       d.NetworkConnectivity(),
			Orientation:   d.ScreenOrientation(),
			RAMTotal:      d.TotalRAM(),
			RAMUsed:       d.UsedRAM(),
			Resolution:    d.ScreenResolution(),
			Type:          d.DeviceType(),
			Vendor:        d.Vendor(),
		},
		OS: model.OS{
			Name:    d.OSName(),
			Version: d.OSVersion(),
		},
	}
}

func (a App) PackageInfo() model.PackageInfo {
	return model.PackageInfo{
		Name:        a.PackageName,
		Version:     a.Version,
		VersionName: a.VersionName,
	}
}

// Headers composes the SDK headers sent with every API request.
func Headers(d Details, app App) http.Header {
	h := http.Header{}
	h.Set("Accept-Language", d.Language())
	h.Set("x-sdk-version", app.SDKVersion)
	h.Set("x-app-version", app.VersionName)
	h.Set("x-os-version", d.OSVersion())
	h.Set("x-os-name", d.OSName())
	h.Set("x-device-vendor", d.Vendor())
	h.Set("x-device-model", d.Model())
	h.Set("x-package-name", app.PackageName)
	h.Set("x-package-version", strconv.Itoa(app.Version))
	h.Set("x-os-minsdkversion", runtime.Version())
	h.Set("x-os-targetsdkversion", runtime.Version())
	return h
}
