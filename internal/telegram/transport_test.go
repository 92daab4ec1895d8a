package telegram

import (
	"context"
	"errors"
	"sync/atomic"
)

// fakeTransport implements Transport for bridge and validator tests.
type fakeTransport struct {
	connectErr   error
	blockConnect bool
	meErr        error
	me           User
	sendErr      error
	resolveErr   error
	webViewURL   string
	webViewErr   error

	connects    atomic.Int32
	disconnects atomic.Int32
	sent        []string
	resolved    []string
	webViewReqs []WebViewRequest
}

var errFakePeer = errors.New("fake: unresolved peer")

type fakePeer struct{ username string }

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.connects.Add(1)
	if f.blockConnect {
		<-ctx.Done()
		return ErrConnectTimeout
	}
	return f.connectErr
}

func (f *fakeTransport) Me(context.Context) (User, error) {
	if f.meErr != nil {
		return User{}, f.meErr
	}
	return f.me, nil
}

func (f *fakeTransport) SendMessage(_ context.Context, username, text string) error {
	f.sent = append(f.sent, username+" "+text)
	return f.sendErr
}

func (f *fakeTransport) ResolvePeer(_ context.Context, username string) (Peer, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	f.resolved = append(f.resolved, username)
	return fakePeer{username: username}, nil
}

func (f *fakeTransport) RequestWebView(_ context.Context, bot Peer, req WebViewRequest) (string, error) {
	if _, ok := bot.(fakePeer); !ok {
		return "", errFakePeer
	}
	f.webViewReqs = append(f.webViewReqs, req)
	if f.webViewErr != nil {
		return "", f.webViewErr
	}
	return f.webViewURL, nil
}

func (f *fakeTransport) Disconnect() error {
	f.disconnects.Add(1)
	return nil
}
