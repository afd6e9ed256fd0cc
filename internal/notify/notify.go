// Package notify posts run summaries to a Telegram chat.
//
// The notifier is optional (disabled without a token) and best-effort: sends
// happen on their own goroutine, are rate limited, and failures are only
// logged. The dispatch worker never blocks on it.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"smsblast/internal/config"
	"smsblast/internal/dispatch"
	"smsblast/pkg/logx"
)

type Service struct {
	mu      sync.Mutex
	cfg     config.NotifierConfig
	bot     *tele.Bot
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg *config.NotifierConfig, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log}
	s.Apply(cfg)
	return s
}

// Apply swaps the notifier settings at runtime. The bot client is rebuilt
// only when the token changes.
func (s *Service) Apply(cfg *config.NotifierConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg == nil {
		s.cfg = config.NotifierConfig{}
		s.bot = nil
		return
	}

	rebuild := s.bot == nil || s.cfg.Token != cfg.Token
	s.cfg = *cfg

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)

	if !cfg.Enabled || strings.TrimSpace(cfg.Token) == "" {
		s.bot = nil
		return
	}
	if rebuild {
		bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
		if err != nil {
			s.log.Warn("telegram notifier init failed", logx.Err(err))
			s.bot = nil
			return
		}
		s.bot = bot
	}
}

// RunFinished posts a summary of a terminal run. Safe to call from the
// dispatch worker; the send happens asynchronously.
func (s *Service) RunFinished(rec dispatch.RunRecord) {
	s.mu.Lock()
	bot := s.bot
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	if bot == nil || !cfg.Enabled || cfg.ChatID == 0 {
		return
	}
	if lim != nil && !lim.Allow() {
		s.log.Debug("run notification dropped (rate limited)", logx.String("run", rec.ID))
		return
	}

	msg := formatSummary(rec)
	go func() {
		if _, err := bot.Send(&tele.Chat{ID: cfg.ChatID}, msg); err != nil {
			s.log.Warn("run notification failed", logx.String("run", rec.ID), logx.Err(err))
		}
	}()
}

func formatSummary(rec dispatch.RunRecord) string {
	var b strings.Builder
	switch rec.Status {
	case dispatch.StatusCompleted:
		b.WriteString("✅ Campaign completed")
	case dispatch.StatusCancelled:
		b.WriteString("⏹ Campaign cancelled")
	case dispatch.StatusQuotaExceeded:
		b.WriteString("🚫 Campaign blocked: daily quota exhausted")
	default:
		b.WriteString("Campaign " + string(rec.Status))
	}
	fmt.Fprintf(&b, "\nrun %s", rec.ID)
	if rec.DryRun {
		b.WriteString(" (dry run)")
	}
	fmt.Fprintf(&b, "\nsent %d/%d, failed %d", rec.SuccessCount(), rec.Total, rec.FailedCount())
	if rec.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", rec.Error)
	}
	fmt.Fprintf(&b, "\ntook %s", time.Since(rec.StartTime).Round(time.Second))
	return b.String()
}
