// Package telegram wraps the MTProto side of a run: a transient transport
// session per account, identity validation, and the embedded web-view dance
// that yields the init-data credential the game backend accepts.
package telegram

import (
	"context"
	"errors"

	"pengu_farm/internal/model"
)

var (
	ErrConnectTimeout = errors.New("telegram: connect timed out")
	ErrNotConnected   = errors.New("telegram: not connected")
)

// Peer is an opaque resolved peer reference, produced by ResolvePeer and
// consumed by RequestWebView.
type Peer any

type User struct {
	ID        int64
	Username  string
	Phone     string
	FirstName string
}

type WebViewRequest struct {
	Platform   string
	StartParam string
	URL        string
}

// Transport is the narrow surface this program needs from an MTProto client.
// One Transport is opened per account per run and must be released exactly
// once via Disconnect, on every path.
type Transport interface {
	Connect(ctx context.Context) error
	Me(ctx context.Context) (User, error)
	SendMessage(ctx context.Context, username, text string) error
	ResolvePeer(ctx context.Context, username string) (Peer, error)
	// RequestWebView returns the web view URL whose fragment carries the
	// signed init data.
	RequestWebView(ctx context.Context, bot Peer, req WebViewRequest) (string, error)
	Disconnect() error
}

// Dialer builds a Transport for one account. Swapped for a fake in tests.
type Dialer func(acc model.Account) (Transport, error)
