package device

import "context"

// Driver attempts a single message send.
//
// A dry run must not touch the device but should take comparable time, so
// dry-run campaigns exercise realistic pacing.
type Driver interface {
	Send(ctx context.Context, phone, message string, dryRun bool) (ok bool, detail string)
}

// CheckResult reports device connectivity.
type CheckResult struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
	DeviceID  string `json:"device_id,omitempty"`
}

// ScreenSize is the device's physical display size.
type ScreenSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
