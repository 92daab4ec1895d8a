package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Game     GameConfig     `yaml:"game"`
	Delays   DelaysConfig   `yaml:"delays"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type TelegramConfig struct {
	APIID            int32  `yaml:"apiId"`
	APIHash          string `yaml:"apiHash"`
	Workdir          string `yaml:"workdir"`
	BotUsername      string `yaml:"botUsername"`
	Platform         string `yaml:"platform"`
	ConnectTimeoutMs int    `yaml:"connectTimeoutMs"`
}

func (c TelegramConfig) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

type GameConfig struct {
	BaseURL        string `yaml:"baseURL"`
	AuthURL        string `yaml:"authURL"`
	WebAppURL      string `yaml:"webAppURL"`
	GameID         string `yaml:"gameId"`
	GameName       string `yaml:"gameName"`
	InvitationCode string `yaml:"invitationCode"`
	TimeoutMs      int    `yaml:"timeoutMs"`
	// VerifyTLS is off unless enabled: the game API is called with
	// certificate validation disabled, same as the web app tolerates.
	VerifyTLS bool            `yaml:"verifyTLS"`
	Retry     TaskRetryConfig `yaml:"retry"`
}

func (c GameConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type TaskRetryConfig struct {
	Count   int `yaml:"count"`
	DelayMs int `yaml:"delayMs"`
}

func (c TaskRetryConfig) Attempts() int {
	if c.Count <= 0 {
		return 3
	}
	return c.Count
}

func (c TaskRetryConfig) Delay() time.Duration {
	if c.DelayMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DelayMs) * time.Millisecond
}

type DelaysConfig struct {
	StartMinMs int `yaml:"startMinMs"`
	StartMaxMs int `yaml:"startMaxMs"`
	SettleMs   int `yaml:"settleMs"`
}

func (c DelaysConfig) StartMin() time.Duration {
	if c.StartMinMs < 0 {
		return 0
	}
	return time.Duration(c.StartMinMs) * time.Millisecond
}

func (c DelaysConfig) StartMax() time.Duration {
	if c.StartMaxMs <= c.StartMinMs {
		return c.StartMin()
	}
	return time.Duration(c.StartMaxMs) * time.Millisecond
}

// Settle is the wait inserted after state-changing waitlist calls; the
// backend is eventually consistent and rejects follow-ups sent too early.
func (c DelaysConfig) Settle() time.Duration {
	if c.SettleMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.SettleMs) * time.Millisecond
}

type ProxyConfig struct {
	Global string `yaml:"global"`
}

type OutputConfig struct {
	AccountsPath string `yaml:"accountsPath"`
	InvalidPath  string `yaml:"invalidPath"`
	SnapshotPath string `yaml:"snapshotPath"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type NotifyConfig struct {
	Email EmailConfig `yaml:"email"`
}

type EmailConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	From            string `yaml:"from"`
	To              string `yaml:"to"`
	SummaryWindowMs int    `yaml:"summaryWindowMs"`
	MaxBatch        int    `yaml:"maxBatch"`
}

func (c EmailConfig) SummaryWindow() time.Duration {
	if c.SummaryWindowMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.SummaryWindowMs) * time.Millisecond
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.Workdir == "" {
		c.Telegram.Workdir = "sessions"
	}
	if c.Telegram.BotUsername == "" {
		c.Telegram.BotUsername = "pengu_clash_bot"
	}
	if c.Telegram.Platform == "" {
		c.Telegram.Platform = "android"
	}
	if c.Game.BaseURL == "" {
		c.Game.BaseURL = "https://api.pudgy-clash.elympics.ai"
	}
	if c.Game.AuthURL == "" {
		c.Game.AuthURL = "https://api.elympics.cc/v2/auth/user/telegram-auth-v2"
	}
	if c.Game.WebAppURL == "" {
		c.Game.WebAppURL = c.Game.BaseURL
	}
	if c.Game.GameID == "" {
		c.Game.GameID = "6e4cf20b-7599-40ce-8db1-ffe00d6e71cc"
	}
	if c.Game.GameName == "" {
		c.Game.GameName = "Pengu Clash"
	}
	if c.Delays.StartMinMs == 0 && c.Delays.StartMaxMs == 0 {
		c.Delays.StartMinMs = 5000
		c.Delays.StartMaxMs = 15000
	}
	if c.Output.AccountsPath == "" {
		c.Output.AccountsPath = "sessions/accounts.json"
	}
	if c.Output.InvalidPath == "" {
		c.Output.InvalidPath = "sessions/invalid_accounts.txt"
	}
	if c.Output.SnapshotPath == "" {
		c.Output.SnapshotPath = "output/accounts_data.json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnv lets TELEGRAM_API_ID / TELEGRAM_API_HASH override the yaml file so
// credentials can live in .env instead of the committed config.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_API_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.Telegram.APIID = int32(id)
		}
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_API_HASH")); v != "" {
		c.Telegram.APIHash = v
	}
}

func (c *Config) validate() error {
	if c.Telegram.APIID == 0 || c.Telegram.APIHash == "" {
		return errors.New("telegram.apiId and telegram.apiHash are required")
	}
	if c.Game.InvitationCode == "" {
		return errors.New("game.invitationCode is required")
	}
	if c.Delays.StartMaxMs < c.Delays.StartMinMs {
		return errors.New("delays.startMaxMs must be >= delays.startMinMs")
	}
	return nil
}
