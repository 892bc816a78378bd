package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pkm2-predict/api/internal/app"
	"pkm2-predict/api/internal/config"
	"pkm2-predict/api/internal/features"
	"pkm2-predict/api/internal/httpserver"
	"pkm2-predict/api/internal/logging"
	"pkm2-predict/api/internal/otel"
	"pkm2-predict/api/internal/store"
	"pkm2-predict/api/internal/telegram"
	"pkm2-predict/api/internal/util"
)

const serviceName = "pkm2-bot"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	log, err := logging.New(serviceName, cfg.LogDebug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdown, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = cfg.LogDebug

	r := &telegram.Router{
		Bot:      bot,
		Svc:      a.Service,
		Required: features.Required,
		Log:      log,
		Timeout:  cfg.DescriptorTimeout + cfg.PredictTimeout,
	}
	if a.DB != nil {
		r.History = store.NewPredictionRepo(a.DB)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if a.DB != nil {
			pctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := a.DB.PingContext(pctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := "0.0.0.0:" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		if err := registerWebhook(bot, r, mux, webhookURL, log); err != nil {
			return err
		}
	} else {
		g.Go(func() error {
			runPolling(gctx, bot, log, func(upd tgbotapi.Update) { r.HandleUpdate(gctx, upd) })
			return nil
		})
	}
	g.Go(func() error { return httpserver.Run(gctx, addr, mux, log) })
	return g.Wait()
}

// ---------------- Modes -----------------

func registerWebhook(bot *tgbotapi.BotAPI, r *telegram.Router, mux *http.ServeMux, baseURL string, log *zap.Logger) error {
	// secret path derived from the token
	path := "/webhook/" + util.ShortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			log.Warn("bad webhook update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		// Telegram redelivers when the webhook is slow; answer first.
		w.WriteHeader(http.StatusOK)
		go r.HandleUpdate(context.WithoutCancel(req.Context()), *upd)
	})
	log.Info("webhook registered", zap.String("path", path))
	return nil
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// clampDelay keeps a retry delay within [lo, hi].
func clampDelay(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, log *zap.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		if ctx.Err() != nil {
			log.Info("polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling, seconds

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err), baseDelay, maxDelay)
			log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
