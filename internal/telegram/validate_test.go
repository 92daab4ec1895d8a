package telegram

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"pengu_farm/internal/config"
	"pengu_farm/internal/model"
)

func testValidator(dial Dialer) *Validator {
	cfg := config.TelegramConfig{
		APIID:            1,
		APIHash:          "h",
		ConnectTimeoutMs: 50,
	}
	return NewValidator(cfg, dial, zap.NewNop())
}

func TestValidateTimeoutIsInvalid(t *testing.T) {
	ft := &fakeTransport{blockConnect: true}
	v := testValidator(func(model.Account) (Transport, error) { return ft, nil })

	if v.Validate(context.Background(), model.Account{SessionName: "a"}) {
		t.Fatal("account with a hanging connect classified valid")
	}
	if ft.disconnects.Load() != 1 {
		t.Fatalf("disconnects = %d, want exactly 1", ft.disconnects.Load())
	}
}

func TestValidateResolvedIdentityIsValid(t *testing.T) {
	ft := &fakeTransport{me: User{ID: 42, Username: "alice"}}
	v := testValidator(func(model.Account) (Transport, error) { return ft, nil })

	if !v.Validate(context.Background(), model.Account{SessionName: "a"}) {
		t.Fatal("healthy account classified invalid")
	}
	if ft.connects.Load() != 1 || ft.disconnects.Load() != 1 {
		t.Fatalf("connects = %d, disconnects = %d", ft.connects.Load(), ft.disconnects.Load())
	}
}

func TestValidateIdentityFaultIsInvalid(t *testing.T) {
	ft := &fakeTransport{meErr: errors.New("AUTH_KEY_UNREGISTERED")}
	v := testValidator(func(model.Account) (Transport, error) { return ft, nil })

	if v.Validate(context.Background(), model.Account{SessionName: "a"}) {
		t.Fatal("account with dead auth key classified valid")
	}
	if ft.disconnects.Load() != 1 {
		t.Fatalf("disconnects = %d, want exactly 1", ft.disconnects.Load())
	}
}

func TestValidateRejectsBrokenProxy(t *testing.T) {
	dialed := false
	v := testValidator(func(model.Account) (Transport, error) {
		dialed = true
		return &fakeTransport{}, nil
	})

	acc := model.Account{SessionName: "a", Proxy: "not a proxy"}
	if v.Validate(context.Background(), acc) {
		t.Fatal("account with broken proxy classified valid")
	}
	if dialed {
		t.Fatal("dialed despite broken proxy")
	}
}

func TestValidateAllPartitions(t *testing.T) {
	transports := map[string]*fakeTransport{
		"good":    {me: User{Username: "good"}},
		"hanging": {blockConnect: true},
		"dead":    {connectErr: errors.New("SESSION_REVOKED")},
	}
	v := testValidator(func(acc model.Account) (Transport, error) {
		return transports[acc.SessionName], nil
	})

	accs := []model.Account{
		{SessionName: "good"},
		{SessionName: "hanging"},
		{SessionName: "dead"},
	}
	valid, invalid := v.ValidateAll(context.Background(), accs)

	if len(valid) != 1 || valid[0].SessionName != "good" {
		t.Fatalf("valid = %+v", valid)
	}
	if len(invalid) != 2 {
		t.Fatalf("invalid = %+v", invalid)
	}
	for _, ft := range transports {
		if ft.disconnects.Load() != 1 {
			t.Fatalf("a transport was released %d times", ft.disconnects.Load())
		}
	}
}
