// Package engine drives one run: every validated account gets its own
// goroutine that walks the full workflow (jitter, init data, login, waitlist
// action, tasks) and releases its sessions on every exit path. One failed
// account never takes the run down.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"pengu_farm/internal/config"
	"pengu_farm/internal/game"
	"pengu_farm/internal/model"
	"pengu_farm/internal/notify"
	"pengu_farm/internal/outlog"
	"pengu_farm/internal/telegram"
)

type Options struct {
	Cfg      config.Config
	Dial     telegram.Dialer
	Out      *outlog.Log
	Notifier notify.Notifier
	Logger   *zap.Logger
}

type Engine struct {
	cfg      config.Config
	dial     telegram.Dialer
	out      *outlog.Log
	notifier notify.Notifier
	logger   *zap.Logger
}

func New(opts Options) *Engine {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Engine{
		cfg:      opts.Cfg,
		dial:     opts.Dial,
		out:      opts.Out,
		notifier: notifier,
		logger:   opts.Logger,
	}
}

// Run fans out one worker per account and waits for all of them. There is no
// throughput cap; the per-account startup jitter is the only throttle.
func (e *Engine) Run(ctx context.Context, accounts []model.Account) {
	var wg sync.WaitGroup
	for thread, acc := range accounts {
		wg.Add(1)
		go func(thread int, acc model.Account) {
			defer wg.Done()
			e.runAccount(ctx, thread, acc)
		}(thread, acc)
	}
	wg.Wait()
	e.logger.Info("run finished", zap.Int("accounts", len(accounts)))
}

func (e *Engine) runAccount(ctx context.Context, thread int, acc model.Account) {
	log := e.logger.With(
		zap.Int("thread", thread),
		zap.String("account", acc.SessionFile()),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("account worker panicked", zap.Any("panic", r))
		}
	}()

	if !sleepCtx(ctx, e.startJitter()) {
		return
	}

	t, err := e.dial(acc)
	if err != nil {
		log.Error("failed to build telegram client", zap.Error(err))
		e.report(ctx, acc, err)
		return
	}

	bridge := telegram.NewBridge(e.cfg.Telegram, e.cfg.Game, e.cfg.Delays.Settle(), log)
	initData, err := bridge.FetchInitData(ctx, t)
	if err != nil {
		log.Error("failed to get web app data", zap.Error(err))
		e.report(ctx, acc, err)
		return
	}

	g := game.New(e.cfg.Game, e.cfg.Proxy, acc, e.out, log)
	defer g.Close()

	if _, err := g.Login(ctx, initData); err != nil {
		log.Error("login failed", zap.Error(err))
		e.report(ctx, acc, err)
		return
	}

	status := g.CheckWaitlist(ctx)
	log.Info("waitlist status", zap.String("status", string(status)))

	var (
		final     model.WaitlistState
		haveFinal bool
	)
	switch status {
	case model.WaitlistNotJoined:
		g.JoinWaitlist(ctx)
		if !sleepCtx(ctx, e.cfg.Delays.Settle()) {
			e.report(ctx, acc, ctx.Err())
			return
		}
		final, haveFinal = g.ProcessPendingTasks(ctx)
	case model.WaitlistPending:
		g.ClaimWaitlist(ctx)
		if !sleepCtx(ctx, e.cfg.Delays.Settle()) {
			e.report(ctx, acc, ctx.Err())
			return
		}
		final, haveFinal = g.ProcessPendingTasks(ctx)
	default:
		// completed or unknown: nothing to mutate, just record where the
		// account stands.
		if state, ferr := g.FetchSnapshot(ctx); ferr == nil {
			final, haveFinal = state, true
		}
	}

	res := notify.AccountResult{
		At:       time.Now().UnixMilli(),
		Account:  acc.SessionFile(),
		Nickname: g.Auth().Nickname,
	}
	if haveFinal {
		res.Status = string(model.ParseWaitlistStatus(final.Status))
		res.InviteCode = final.InviteCode
		res.Reward = fmt.Sprint(final.Reward)
	}
	e.notifier.NotifyAccountDone(ctx, res)
}

func (e *Engine) report(ctx context.Context, acc model.Account, err error) {
	res := notify.AccountResult{
		At:      time.Now().UnixMilli(),
		Account: acc.SessionFile(),
	}
	if err != nil {
		res.Err = err.Error()
	}
	e.notifier.NotifyAccountDone(ctx, res)
}

func (e *Engine) startJitter() time.Duration {
	min := e.cfg.Delays.StartMin()
	max := e.cfg.Delays.StartMax()
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
