package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pengu_farm/internal/config"
	"pengu_farm/internal/engine"
	"pengu_farm/internal/logger"
	"pengu_farm/internal/model"
	"pengu_farm/internal/notify"
	"pengu_farm/internal/outlog"
	"pengu_farm/internal/store"
	"pengu_farm/internal/telegram"
	"pengu_farm/internal/utils"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config.yaml")
	flag.Parse()

	// .env may carry TELEGRAM_API_ID / TELEGRAM_API_HASH; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.New(cfg.Log.Level)
	defer func() { _ = lg.Sync() }()

	if err := os.MkdirAll(cfg.Telegram.Workdir, 0o755); err != nil {
		lg.Fatal("failed to create workdir", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New(cfg.Telegram.Workdir, cfg.Output, lg)
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("PENGU CLASH")
	fmt.Print("Select action:\n1. Start soft\n2. Create sessions\n\n> ")
	choice, _ := reader.ReadString('\n')

	switch strings.TrimSpace(choice) {
	case "1":
		runAccounts(ctx, cfg, st, lg)
	case "2":
		createSessions(cfg, st, lg, reader)
	default:
		lg.Error("unknown action", zap.String("input", strings.TrimSpace(choice)))
	}
}

func runAccounts(ctx context.Context, cfg config.Config, st *store.Store, lg *zap.Logger) {
	sessions, err := st.ListSessions()
	if err != nil {
		lg.Fatal("failed to list sessions", zap.Error(err))
	}
	lg.Info("found sessions", zap.Int("count", len(sessions)))

	accounts, err := st.FilterKnown(sessions)
	if err != nil {
		lg.Fatal("failed to read account store", zap.Error(err))
	}
	if len(accounts) == 0 {
		lg.Warn("no available accounts, create sessions first")
		return
	}
	lg.Info("found available accounts", zap.Int("count", len(accounts)))

	dial := telegram.NewDialer(cfg.Telegram)
	validator := telegram.NewValidator(cfg.Telegram, dial, lg)
	valid, invalid := validator.ValidateAll(ctx, accounts)

	if len(invalid) > 0 {
		if err := st.AppendInvalid(invalid); err != nil {
			lg.Error("failed to save invalid accounts", zap.Error(err))
		}
	}
	if len(valid) == 0 {
		lg.Warn("no valid accounts found")
		return
	}

	out, err := outlog.Open(cfg.Output.SnapshotPath, lg)
	if err != nil {
		lg.Fatal("failed to open output log", zap.Error(err))
	}
	defer out.Close()

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Email.Enabled {
		n := notify.NewEmailNotifier(cfg.Notify.Email, lg)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = n.Close(closeCtx)
		}()
		notifier = n
	}

	eng := engine.New(engine.Options{
		Cfg:      cfg,
		Dial:     dial,
		Out:      out,
		Notifier: notifier,
		Logger:   lg,
	})
	eng.Run(ctx, valid)
}

func createSessions(cfg config.Config, st *store.Store, lg *zap.Logger, reader *bufio.Reader) {
	for {
		fmt.Print("\nInput the name of the session (press Enter to exit): ")
		name, _ := reader.ReadString('\n')
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}

		fmt.Print("Input the proxy (scheme://login:password@ip:port, press Enter for no proxy): ")
		proxy, _ := reader.ReadString('\n')
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			if _, err := utils.ParseProxy(proxy); err != nil {
				lg.Error("invalid proxy format, try again")
				continue
			}
		}

		acc := model.Account{
			SessionName: name,
			UserAgent:   utils.RandomUserAgent(),
			Proxy:       proxy,
		}
		user, err := telegram.CreateSession(cfg.Telegram, acc)
		if err != nil {
			lg.Error("failed to create session", zap.String("session", name), zap.Error(err))
			continue
		}

		if _, err := st.Append(acc); err != nil {
			lg.Error("failed to save account record", zap.Error(err))
			continue
		}

		ident := user.Username
		if ident == "" {
			ident = user.Phone
		}
		lg.Info("added account",
			zap.String("user", ident),
			zap.String("name", user.FirstName))
	}
}
