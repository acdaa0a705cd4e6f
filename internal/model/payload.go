package model

// FeedbackPayload is the body of POST /api/v1/feedback.
type FeedbackPayload struct {
	DeviceInfo  DeviceInfo  `json:"deviceInfo"`
	Message     *string     `json:"message"`
	PackageInfo PackageInfo `json:"packageInfo"`
	Screenshot  *string     `json:"screenshot"`
	Type        Kind        `json:"type"`
	Screen      string      `json:"screen"`
}

type DeviceInfo struct {
	Device Device `json:"device"`
	OS     OS     `json:"os"`
}

type Device struct {
	Battery       int    `json:"battery"`
	BatteryStatus bool   `json:"batteryStatus"`
	DiskFree      string `json:"diskFree"`
	Model         string `json:"model"`
	Network       string `json:"network"`
	Orientation   string `json:"orientation"`
	RAMTotal      string `json:"ramTotal"`
	RAMUsed       string `json:"ramUsed"`
	Resolution    string `json:"resolution"`
	Type          string `json:"type"`
	Vendor        string `json:"vendor"`
}

type OS struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type PackageInfo struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	VersionName string `json:"versionName"`
}

// Submission is what the coordinator hands to a submission client: the
// finalized record plus the screen it was sent from. Capture is nil unless the
// user chose to attach it.
type Submission struct {
	Message string
	Kind    Kind
	Capture *ScreenCapture
	Screen  string
}

// FeedbackResult is the successful reply of the intake API.
type FeedbackResult struct {
	ID     int64 `json:"id,string"`
	Status bool  `json:"status"`
}

// ErrorEnvelope is the body of every non-2xx intake API response.
type ErrorEnvelope struct {
	Status bool      `json:"status"`
	Error  ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

type ErrorData struct {
	Providers []string `json:"providers,omitempty"`
}
