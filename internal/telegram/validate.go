package telegram

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pengu_farm/internal/config"
	"pengu_farm/internal/model"
	"pengu_farm/internal/utils"
)

// Validator partitions accounts into those whose session still resolves an
// identity and those that are dead, banned, or unreachable.
type Validator struct {
	cfg    config.TelegramConfig
	dial   Dialer
	logger *zap.Logger
}

func NewValidator(cfg config.TelegramConfig, dial Dialer, logger *zap.Logger) *Validator {
	return &Validator{cfg: cfg, dial: dial, logger: logger}
}

// Validate opens a transient transport, connects within the configured
// timeout, and resolves the account's own identity. Any fault classifies the
// account invalid; the transport is released exactly once either way.
func (v *Validator) Validate(ctx context.Context, acc model.Account) (ok bool) {
	log := v.logger.With(zap.String("account", acc.SessionFile()))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while validating account", zap.Any("panic", r))
			ok = false
		}
	}()

	if acc.Proxy != "" {
		if _, err := utils.ParseProxy(acc.Proxy); err != nil {
			log.Error("invalid proxy, skipping account", zap.String("proxy", acc.Proxy))
			return false
		}
	}

	t, err := v.dial(acc)
	if err != nil {
		log.Error("failed to build telegram client", zap.Error(err))
		return false
	}
	defer func() {
		if err := t.Disconnect(); err != nil {
			log.Warn("error during disconnect", zap.Error(err))
		}
	}()

	connectCtx, cancel := context.WithTimeout(ctx, v.cfg.ConnectTimeout())
	defer cancel()
	if err := t.Connect(connectCtx); err != nil {
		log.Error("connection failed", zap.Error(err))
		return false
	}

	me, err := t.Me(ctx)
	if err != nil {
		log.Error("failed to get user info", zap.Error(err))
		return false
	}

	ident := me.Username
	if ident == "" {
		ident = me.Phone
	}
	log.Debug("account is valid", zap.String("user", ident))
	return true
}

// ValidateAll runs all validations concurrently and partitions by outcome.
// No state is shared between checks; order within each slice follows the
// input only because results are collected by index.
func (v *Validator) ValidateAll(ctx context.Context, accs []model.Account) (valid, invalid []model.Account) {
	results := make([]bool, len(accs))
	var wg sync.WaitGroup
	for i, acc := range accs {
		wg.Add(1)
		go func(i int, acc model.Account) {
			defer wg.Done()
			results[i] = v.Validate(ctx, acc)
		}(i, acc)
	}
	wg.Wait()

	for i, acc := range accs {
		if results[i] {
			valid = append(valid, acc)
		} else {
			invalid = append(invalid, acc)
		}
	}
	v.logger.Info(fmt.Sprintf("valid accounts: %d; invalid: %d", len(valid), len(invalid)))
	return valid, invalid
}
