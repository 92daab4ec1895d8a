package telegram

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	tg "github.com/amarnathcjd/gogram/telegram"

	"pengu_farm/internal/config"
	"pengu_farm/internal/model"
	"pengu_farm/internal/utils"
)

// MTProto is the gogram-backed Transport. Session state lives in
// <workdir>/<session_name>.session.
type MTProto struct {
	client    *tg.Client
	connected bool
}

// NewDialer returns the production Dialer. An account with an unparseable
// proxy fails to dial; going direct behind the operator's back is worse than
// skipping the account.
func NewDialer(cfg config.TelegramConfig) Dialer {
	return func(acc model.Account) (Transport, error) {
		return NewMTProto(cfg, acc)
	}
}

func NewMTProto(cfg config.TelegramConfig, acc model.Account) (*MTProto, error) {
	var proxyURL *url.URL
	if acc.Proxy != "" {
		p, err := utils.ParseProxy(acc.Proxy)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", acc.SessionName, err)
		}
		proxyURL = p.URL()
	}

	client, err := tg.NewClient(tg.ClientConfig{
		AppID:     cfg.APIID,
		AppHash:   cfg.APIHash,
		Session:   filepath.Join(cfg.Workdir, acc.SessionFile()),
		Proxy:     proxyURL,
		DeviceConfig: tg.DeviceConfig{
			LangCode: "en",
		},
		NoUpdates: true,
	})
	if err != nil {
		return nil, err
	}
	return &MTProto{client: client}, nil
}

// Connect dials the MTProto transport, honoring the context deadline. gogram
// itself has no context-aware connect, so it runs in a goroutine and the
// deadline converts to ErrConnectTimeout.
func (m *MTProto) Connect(ctx context.Context) error {
	err := awaitConnect(ctx, m.client.Connect, func() {
		_ = m.client.Disconnect()
	})
	if err != nil {
		return err
	}
	m.connected = true
	return nil
}

// awaitConnect waits for dial within the context deadline. After a timeout the
// dial keeps running in its goroutine; a late success is released immediately
// so the connection cannot outlive its account run.
func awaitConnect(ctx context.Context, dial func() error, release func()) error {
	done := make(chan error, 1)
	go func() {
		done <- dial()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		go func() {
			if err := <-done; err == nil {
				release()
			}
		}()
		return ErrConnectTimeout
	}
}

func (m *MTProto) Me(_ context.Context) (User, error) {
	if !m.connected {
		return User{}, ErrNotConnected
	}
	me := m.client.Me()
	return User{
		ID:        me.ID,
		Username:  me.Username,
		Phone:     me.Phone,
		FirstName: me.FirstName,
	}, nil
}

// CreateSession drives the library's interactive login for a brand-new
// session file and reports who logged in. Used by the "create sessions" menu
// action only.
func CreateSession(cfg config.TelegramConfig, acc model.Account) (User, error) {
	m, err := NewMTProto(cfg, acc)
	if err != nil {
		return User{}, err
	}
	defer m.client.Stop()

	if err := m.client.Start(); err != nil {
		return User{}, err
	}
	if err := m.client.AuthPrompt(); err != nil {
		return User{}, err
	}
	me := m.client.Me()
	return User{
		ID:        me.ID,
		Username:  me.Username,
		Phone:     me.Phone,
		FirstName: me.FirstName,
	}, nil
}

func (m *MTProto) SendMessage(_ context.Context, username, text string) error {
	if !m.connected {
		return ErrNotConnected
	}
	_, err := m.client.SendMessage(username, text)
	return err
}

func (m *MTProto) ResolvePeer(_ context.Context, username string) (Peer, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}
	return m.client.ResolvePeer(username)
}

func (m *MTProto) RequestWebView(_ context.Context, bot Peer, req WebViewRequest) (string, error) {
	if !m.connected {
		return "", ErrNotConnected
	}
	peer, ok := bot.(tg.InputPeer)
	if !ok {
		return "", fmt.Errorf("telegram: unexpected peer type %T", bot)
	}
	view, err := m.client.MessagesRequestWebView(&tg.MessagesRequestWebViewParams{
		Peer:        peer,
		Bot:         inputUserFromPeer(peer),
		Platform:    req.Platform,
		FromBotMenu: false,
		StartParam:  req.StartParam,
		URL:         req.URL,
	})
	if err != nil {
		return "", err
	}
	return view.URL, nil
}

func inputUserFromPeer(peer tg.InputPeer) tg.InputUser {
	if u, ok := peer.(*tg.InputPeerUser); ok {
		return &tg.InputUserObj{UserID: u.UserID, AccessHash: u.AccessHash}
	}
	return &tg.InputUserEmpty{}
}

func (m *MTProto) Disconnect() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.client.Disconnect()
}
