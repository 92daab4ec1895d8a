package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"pengu_farm/internal/config"
)

// EmailNotifier batches per-account results and mails a plain-text run
// summary. Results arriving close together collapse into one message.
type EmailNotifier struct {
	cfg    config.EmailConfig
	logger *zap.Logger

	mu     sync.Mutex
	queue  chan AccountResult
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup

	summaryWindow time.Duration
	maxBatch      int

	// deliver defaults to SendRunSummary; swapped in tests.
	deliver func(config.EmailConfig, []AccountResult) error
}

func NewEmailNotifier(cfg config.EmailConfig, logger *zap.Logger) *EmailNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 80
	}
	n := &EmailNotifier{
		cfg:           cfg,
		logger:        logger,
		queue:         make(chan AccountResult, 200),
		ctx:           ctx,
		cancel:        cancel,
		summaryWindow: cfg.SummaryWindow(),
		maxBatch:      maxBatch,
		deliver:       SendRunSummary,
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

func (n *EmailNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *EmailNotifier) NotifyAccountDone(_ context.Context, res AccountResult) {
	select {
	case n.queue <- res:
	default:
		n.logger.Warn("notification dropped, queue full", zap.String("account", res.Account))
	}
}

func (n *EmailNotifier) loop() {
	defer n.wg.Done()

	var (
		pending []AccountResult
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(n.summaryWindow)
			timerCh = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(n.summaryWindow)
	}

	flush := func() {
		if len(pending) == 0 {
			stopTimer()
			return
		}
		results := append([]AccountResult(nil), pending...)
		pending = pending[:0]
		stopTimer()
		n.send(results)
	}

	for {
		select {
		case <-n.ctx.Done():
			flush()
			return
		case res := <-n.queue:
			pending = append(pending, res)
			if len(pending) >= n.maxBatch {
				flush()
				continue
			}
			resetTimer()
		case <-timerCh:
			flush()
		}
	}
}

func (n *EmailNotifier) send(results []AccountResult) {
	if !n.cfg.Enabled {
		return
	}
	if err := n.validate(); err != nil {
		n.logger.Warn("email settings invalid, summary not sent", zap.Error(err))
		return
	}
	if err := n.deliver(n.cfg, results); err != nil {
		n.logger.Warn("failed to send summary email",
			zap.Int("count", len(results)),
			zap.Error(err))
		return
	}
	n.logger.Info("run summary email sent",
		zap.Int("count", len(results)),
		zap.String("to", n.cfg.To))
}

func (n *EmailNotifier) validate() error {
	if strings.TrimSpace(n.cfg.Host) == "" || n.cfg.Port <= 0 {
		return errors.New("smtp host and port are required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(n.cfg.To)); err != nil {
		return errors.New("invalid recipient address")
	}
	return nil
}

func SendRunSummary(cfg config.EmailConfig, results []AccountResult) error {
	if len(results) == 0 {
		return errors.New("no results")
	}

	okCount := 0
	body := new(strings.Builder)
	for _, r := range results {
		at := time.UnixMilli(r.At).Format("2006-01-02 15:04:05")
		if r.Err == "" {
			okCount++
			fmt.Fprintf(body, "- %s | %s | %s | status %s | reward %s | invite %s\n",
				at, r.Account, r.Nickname, r.Status, r.Reward, r.InviteCode)
		} else {
			fmt.Fprintf(body, "- %s | %s | failed: %s\n", at, r.Account, r.Err)
		}
	}

	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = strings.TrimSpace(cfg.Username)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", strings.TrimSpace(cfg.To))
	msg.SetHeader("Subject", fmt.Sprintf("Waitlist run summary: %d/%d ok", okCount, len(results)))
	msg.SetBody("text/plain", body.String())

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return d.DialAndSend(msg)
}
