package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ApplyDefaults fills zero-valued fields in place. It runs once at the load
// boundary so read sites never merge defaults ad hoc.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = "127.0.0.1:8090"
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Policy.SendDelay) == "" {
		cfg.Policy.SendDelay = "5s"
	}
	if strings.TrimSpace(cfg.Device.AdbPath) == "" {
		cfg.Device.AdbPath = "adb"
	}
	if strings.TrimSpace(cfg.Device.SendMethod) == "" {
		cfg.Device.SendMethod = SendMethodTap
	}
	if cfg.Device.SendButtonX == 0 {
		cfg.Device.SendButtonX = 980
	}
	if cfg.Device.SendButtonY == 0 {
		cfg.Device.SendButtonY = 1850
	}
	if strings.TrimSpace(cfg.Device.CommandTimeout) == "" {
		cfg.Device.CommandTimeout = "30s"
	}
	if strings.TrimSpace(cfg.Contacts.Path) == "" {
		cfg.Contacts.Path = "./contacts.csv"
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = "./smsblast.db"
	}
	if strings.TrimSpace(cfg.Schedule.Time) == "" {
		cfg.Schedule.Time = "09:00"
	}
	if cfg.Notifier != nil && cfg.Notifier.RatePerSec <= 0 {
		cfg.Notifier.RatePerSec = 1
	}
}

// Validate rejects configs that would misbehave at runtime. It is called on
// initial load, on every watched reload, and before Save commits an edit.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("server.write_timeout", cfg.Server.WriteTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("server.idle_timeout", cfg.Server.IdleTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("policy.send_delay", cfg.Policy.SendDelay); err != nil {
		return err
	}
	if cfg.Policy.DailyQuota < 0 {
		return fmt.Errorf("policy.daily_quota: must be >= 0")
	}
	switch cfg.Device.SendMethod {
	case SendMethodTap, SendMethodKey, SendMethodTabEnter:
	default:
		return fmt.Errorf("device.send_method: unknown method %q", cfg.Device.SendMethod)
	}
	if _, err := ParseDurationField("device.command_timeout", cfg.Device.CommandTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if cfg.Schedule.Enabled {
		if _, _, err := ParseClock(cfg.Schedule.Time); err != nil {
			return fmt.Errorf("schedule.time: %w", err)
		}
		if tz := strings.TrimSpace(cfg.Schedule.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("schedule.timezone: %w", err)
			}
		}
	}
	if cfg.Notifier != nil && cfg.Notifier.Enabled {
		if strings.TrimSpace(cfg.Notifier.Token) == "" {
			return fmt.Errorf("notifier.token: required when notifier is enabled")
		}
		if cfg.Notifier.ChatID == 0 {
			return fmt.Errorf("notifier.chat_id: required when notifier is enabled")
		}
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock %q: bad hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock %q: bad minute", s)
	}
	return hour, minute, nil
}
