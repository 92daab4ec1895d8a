package telegram

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"pengu_farm/internal/config"
)

var ErrNoInitData = errors.New("telegram: web view URL carries no init data")

// Bridge obtains the signed init-data payload that authorizes acting as the
// account inside the embedded mini-game.
type Bridge struct {
	tcfg   config.TelegramConfig
	gcfg   config.GameConfig
	settle time.Duration
	logger *zap.Logger
}

func NewBridge(tcfg config.TelegramConfig, gcfg config.GameConfig, settle time.Duration, logger *zap.Logger) *Bridge {
	return &Bridge{tcfg: tcfg, gcfg: gcfg, settle: settle, logger: logger}
}

// FetchInitData runs the whole exchange against one transport: connect, poke
// the bot with the referral start command, resolve its peer, wait for the
// bot-side state to settle, request the web view, and pull tgWebAppData out
// of the returned URL. The transport is disconnected before returning, no
// matter which step failed.
func (b *Bridge) FetchInitData(ctx context.Context, t Transport) (string, error) {
	connectCtx, cancel := context.WithTimeout(ctx, b.tcfg.ConnectTimeout())
	defer cancel()
	if err := t.Connect(connectCtx); err != nil {
		return "", err
	}
	defer func() {
		if err := t.Disconnect(); err != nil && b.logger != nil {
			b.logger.Warn("error during disconnect", zap.Error(err))
		}
	}()

	startParam := "invite-" + b.gcfg.InvitationCode
	if err := t.SendMessage(ctx, b.tcfg.BotUsername, "/start "+startParam); err != nil {
		return "", err
	}
	peer, err := t.ResolvePeer(ctx, b.tcfg.BotUsername)
	if err != nil {
		return "", err
	}

	// The bot needs a moment to register the start command before it will
	// hand out a web view for the right referral.
	if !sleepCtx(ctx, b.settle) {
		return "", ctx.Err()
	}

	rawURL, err := t.RequestWebView(ctx, peer, WebViewRequest{
		Platform:   b.tcfg.Platform,
		StartParam: startParam,
		URL:        b.gcfg.WebAppURL,
	})
	if err != nil {
		return "", err
	}
	return ExtractInitData(rawURL)
}

// ExtractInitData cuts the tgWebAppData parameter out of the web view URL
// fragment and URL-decodes it. The payload itself is an encoded query string,
// so the fragment is sliced as text rather than parsed; parsing would decode
// one level too many.
func ExtractInitData(rawURL string) (string, error) {
	const marker = "tgWebAppData="
	i := strings.Index(rawURL, marker)
	if i < 0 {
		return "", ErrNoInitData
	}
	data := rawURL[i+len(marker):]
	if j := strings.Index(data, "&tgWebApp"); j >= 0 {
		data = data[:j]
	}
	decoded, err := url.QueryUnescape(data)
	if err != nil {
		return "", err
	}
	if decoded == "" {
		return "", ErrNoInitData
	}
	return decoded, nil
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
