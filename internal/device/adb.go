package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"smsblast/internal/config"
	"smsblast/pkg/logx"
)

// Key codes used by the send automation.
const (
	keyHome  = 3
	keyTab   = 61
	keyEnter = 66
)

const dryRunLatency = 500 * time.Millisecond

// ADB shells out to the adb binary. All calls are bounded by the configured
// command timeout; failures are reported in-band, never panicked.
type ADB struct {
	mu  sync.Mutex
	cfg config.DeviceConfig
	tmo time.Duration

	log logx.Logger
}

func NewADB(cfg config.DeviceConfig, log logx.Logger) *ADB {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &ADB{log: log}
	a.Apply(cfg)
	return a
}

// Apply swaps the device settings at runtime (hot reload).
func (a *ADB) Apply(cfg config.DeviceConfig) {
	tmo, _ := config.ParseDurationOrDefault("device.command_timeout", cfg.CommandTimeout, 30*time.Second)
	a.mu.Lock()
	a.cfg = cfg
	a.tmo = tmo
	a.mu.Unlock()
}

func (a *ADB) snapshot() (config.DeviceConfig, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg, a.tmo
}

// run executes one adb invocation. Never returns an error to the caller;
// failures come back as ok=false with stderr (or the exec error) in errText.
func (a *ADB) run(ctx context.Context, args ...string) (ok bool, stdout, errText string) {
	cfg, tmo := a.snapshot()

	cctx, cancel := context.WithTimeout(ctx, tmo)
	defer cancel()

	cmd := exec.CommandContext(cctx, cfg.AdbPath, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(errb.String())
		if msg == "" {
			msg = err.Error()
		}
		if cctx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("timeout after %s: %s", tmo, msg)
		}
		a.log.Debug("adb command failed", logx.String("args", strings.Join(args, " ")), logx.String("err", msg))
		return false, out.String(), msg
	}
	return true, out.String(), ""
}

// Send launches the SMS app with a prefilled recipient and body, then
// triggers the send button via the configured method.
func (a *ADB) Send(ctx context.Context, phone, message string, dryRun bool) (bool, string) {
	if dryRun {
		time.Sleep(dryRunLatency)
		return true, "Dry run OK"
	}

	cfg, _ := a.snapshot()

	ok, _, errText := a.run(ctx,
		"shell", "am", "start",
		"-a", "android.intent.action.SENDTO",
		"-d", "sms:"+phone,
		"--es", "sms_body", shellQuote(message),
	)
	if !ok {
		return false, "Launch failed: " + errText
	}

	// Give the messaging app time to open and focus the compose view.
	time.Sleep(3 * time.Second)

	switch cfg.SendMethod {
	case config.SendMethodKey:
		a.keyevent(ctx, keyEnter)
		time.Sleep(500 * time.Millisecond)
		a.keyevent(ctx, keyEnter)
	case config.SendMethodTabEnter:
		a.keyevent(ctx, keyTab)
		time.Sleep(300 * time.Millisecond)
		a.keyevent(ctx, keyTab)
		time.Sleep(300 * time.Millisecond)
		a.keyevent(ctx, keyEnter)
	default: // tap
		x, y := strconv.Itoa(cfg.SendButtonX), strconv.Itoa(cfg.SendButtonY)
		a.run(ctx, "shell", "input", "tap", x, y)
		time.Sleep(time.Second)
		// Tap again in case a confirmation dialog appeared.
		a.run(ctx, "shell", "input", "tap", x, y)
	}

	time.Sleep(2 * time.Second)
	a.keyevent(ctx, keyHome)

	return true, "Sent"
}

func (a *ADB) keyevent(ctx context.Context, code int) {
	a.run(ctx, "shell", "input", "keyevent", strconv.Itoa(code))
}

// Check verifies that adb runs and at least one device is attached.
func (a *ADB) Check(ctx context.Context) CheckResult {
	ok, stdout, _ := a.run(ctx, "devices")
	if !ok {
		return CheckResult{Connected: false, Message: "adb is not runnable"}
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for _, l := range lines[1:] {
		l = strings.TrimSpace(l)
		if l == "" || !strings.Contains(l, "device") {
			continue
		}
		id := strings.Fields(l)[0]
		return CheckResult{Connected: true, Message: "connected: " + id, DeviceID: id}
	}
	return CheckResult{Connected: false, Message: "no device attached"}
}

// Tap issues a single test tap at (x, y).
func (a *ADB) Tap(ctx context.Context, x, y int) (bool, string) {
	ok, _, errText := a.run(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return ok, errText
}

// Size reports the physical screen size ("Physical size: 1080x2400").
func (a *ADB) Size(ctx context.Context) (ScreenSize, error) {
	ok, stdout, errText := a.run(ctx, "shell", "wm", "size")
	if !ok {
		return ScreenSize{}, fmt.Errorf("wm size: %s", errText)
	}
	_, after, found := strings.Cut(stdout, "Physical size:")
	if !found {
		return ScreenSize{}, fmt.Errorf("wm size: unexpected output %q", strings.TrimSpace(stdout))
	}
	w, h, found := strings.Cut(strings.TrimSpace(strings.SplitN(after, "\n", 2)[0]), "x")
	if !found {
		return ScreenSize{}, fmt.Errorf("wm size: unexpected output %q", strings.TrimSpace(stdout))
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return ScreenSize{}, fmt.Errorf("wm size: bad width: %w", err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return ScreenSize{}, fmt.Errorf("wm size: bad height: %w", err)
	}
	return ScreenSize{Width: width, Height: height}, nil
}

// Screenshot captures the device screen and returns the PNG bytes.
func (a *ADB) Screenshot(ctx context.Context) ([]byte, error) {
	if ok, _, errText := a.run(ctx, "shell", "screencap", "-p", "/sdcard/screenshot.png"); !ok {
		return nil, fmt.Errorf("screencap: %s", errText)
	}

	cfg, tmo := a.snapshot()
	cctx, cancel := context.WithTimeout(ctx, tmo)
	defer cancel()

	// exec-out streams raw bytes; don't go through run(), which is text-oriented.
	cmd := exec.CommandContext(cctx, cfg.AdbPath, "exec-out", "cat", "/sdcard/screenshot.png")
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(errb.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("exec-out: %s", msg)
	}
	return out.Bytes(), nil
}

// shellQuote wraps s in single quotes for the device-side shell, which
// re-splits the argument string adb passes through.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Fake is a configurable in-memory Driver for tests and demos.
type Fake struct {
	mu      sync.Mutex
	Latency time.Duration
	// FailPhones lists phone numbers whose sends report failure.
	FailPhones map[string]string

	calls []FakeCall
}

type FakeCall struct {
	Phone   string
	Message string
	DryRun  bool
}

func (f *Fake) Send(ctx context.Context, phone, message string, dryRun bool) (bool, string) {
	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Phone: phone, Message: message, DryRun: dryRun})
	detail, fail := "", false
	if f.FailPhones != nil {
		detail, fail = f.FailPhones[phone]
	}
	f.mu.Unlock()
	if fail {
		return false, detail
	}
	return true, "Sent"
}

func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
