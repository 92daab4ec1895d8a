package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
telegram:
  apiId: 12345
  apiHash: abc
game:
  invitationCode: ref123
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Telegram.Workdir != "sessions" {
		t.Errorf("workdir = %q", cfg.Telegram.Workdir)
	}
	if cfg.Telegram.BotUsername != "pengu_clash_bot" {
		t.Errorf("bot = %q", cfg.Telegram.BotUsername)
	}
	if cfg.Telegram.Platform != "android" {
		t.Errorf("platform = %q", cfg.Telegram.Platform)
	}
	if cfg.Game.BaseURL == "" || cfg.Game.AuthURL == "" || cfg.Game.GameID == "" {
		t.Errorf("game defaults missing: %+v", cfg.Game)
	}
	if cfg.Game.VerifyTLS {
		t.Error("VerifyTLS should default to off")
	}
	if cfg.Delays.StartMin() != 5*time.Second || cfg.Delays.StartMax() != 15*time.Second {
		t.Errorf("jitter window = %v..%v", cfg.Delays.StartMin(), cfg.Delays.StartMax())
	}
	if cfg.Delays.Settle() != 3*time.Second {
		t.Errorf("settle = %v", cfg.Delays.Settle())
	}
	if cfg.Game.Retry.Attempts() != 3 || cfg.Game.Retry.Delay() != 5*time.Second {
		t.Errorf("retry = %d attempts, %v delay", cfg.Game.Retry.Attempts(), cfg.Game.Retry.Delay())
	}
	if cfg.Output.SnapshotPath != "output/accounts_data.json" {
		t.Errorf("snapshot path = %q", cfg.Output.SnapshotPath)
	}
}

func TestLoadEnvOverridesCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "999")
	t.Setenv("TELEGRAM_API_HASH", "envhash")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.APIID != 999 || cfg.Telegram.APIHash != "envhash" {
		t.Fatalf("credentials = %d/%q", cfg.Telegram.APIID, cfg.Telegram.APIHash)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing credentials",
			yaml: "game:\n  invitationCode: ref123\n",
			want: "apiId",
		},
		{
			name: "missing invitation code",
			yaml: "telegram:\n  apiId: 1\n  apiHash: h\n",
			want: "invitationCode",
		},
		{
			name: "inverted jitter window",
			yaml: minimalYAML + "delays:\n  startMinMs: 5000\n  startMaxMs: 100\n",
			want: "startMaxMs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestDurationAccessorsClampBadValues(t *testing.T) {
	var d DelaysConfig
	if d.StartMin() != 0 {
		t.Errorf("StartMin zero value = %v", d.StartMin())
	}
	d = DelaysConfig{StartMinMs: 2000, StartMaxMs: 1000}
	if d.StartMax() != d.StartMin() {
		t.Errorf("StartMax below min should clamp, got %v", d.StartMax())
	}

	var tg TelegramConfig
	if tg.ConnectTimeout() != 30*time.Second {
		t.Errorf("ConnectTimeout zero value = %v", tg.ConnectTimeout())
	}
}
