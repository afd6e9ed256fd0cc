package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig    `json:"server"`
	Logging  LoggingConfig   `json:"logging"`
	Policy   PolicyConfig    `json:"policy"`
	Device   DeviceConfig    `json:"device"`
	Contacts ContactsConfig  `json:"contacts"`
	Storage  StorageConfig   `json:"storage"`
	Schedule ScheduleConfig  `json:"schedule"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
}

// ServerConfig controls the HTTP control surface.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type ServerConfig struct {
	Addr         string `json:"addr,omitempty"` // default: "127.0.0.1:8090"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"` // 0 disables; required for SSE
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PolicyConfig is the send policy applied to each campaign run.
//
// DailyQuota caps successful non-dry-run sends per calendar date; 0 means
// unlimited. SendDelay is the pacing delay between consecutive sends.
type PolicyConfig struct {
	DefaultMessage string `json:"default_message"`
	SendDelay      string `json:"send_delay,omitempty"` // default: "5s"
	DryRun         bool   `json:"dry_run"`
	DailyQuota     int    `json:"daily_quota,omitempty"`
}

// DeviceConfig controls the ADB automation channel.
type DeviceConfig struct {
	AdbPath     string `json:"adb_path,omitempty"` // default: "adb"
	SendMethod  string `json:"send_method,omitempty"`
	SendButtonX int    `json:"send_button_x,omitempty"`
	SendButtonY int    `json:"send_button_y,omitempty"`

	// CommandTimeout bounds each adb invocation.
	CommandTimeout string `json:"command_timeout,omitempty"` // default: "30s"
}

type ContactsConfig struct {
	Path string `json:"path,omitempty"` // default: "./contacts.csv"
}

// StorageConfig controls the sqlite persistence layer (quota state and the
// run archive).
type StorageConfig struct {
	Path        string `json:"path,omitempty"`         // default: "./smsblast.db"
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// ScheduleConfig enables a daily scheduled campaign start.
type ScheduleConfig struct {
	Enabled  bool   `json:"enabled"`
	Time     string `json:"time,omitempty"` // "HH:MM", default "09:00"
	Timezone string `json:"timezone,omitempty"`
}

// NotifierConfig controls the optional Telegram run-summary notifier.
// If the whole section is omitted, the notifier is disabled.
type NotifierConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"` // do not log
	ChatID     int64  `json:"chat_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// Send methods understood by the device driver.
const (
	SendMethodTap      = "tap"
	SendMethodKey      = "key"
	SendMethodTabEnter = "tab_enter"
)

// Policy is the validated, runtime form of PolicyConfig.
type Policy struct {
	DefaultMessage string
	Delay          time.Duration
	DryRun         bool
	DailyQuota     int // 0 = unlimited
}

// RuntimePolicy converts the string-typed config section into a Policy.
// Validate must have accepted the config first.
func (c *Config) RuntimePolicy() Policy {
	d, _ := ParseDurationOrDefault("policy.send_delay", c.Policy.SendDelay, 5*time.Second)
	return Policy{
		DefaultMessage: c.Policy.DefaultMessage,
		Delay:          d,
		DryRun:         c.Policy.DryRun,
		DailyQuota:     c.Policy.DailyQuota,
	}
}
