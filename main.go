package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passgate/src-server/admission"
	"passgate/src-server/jwt"
	"passgate/src-server/metric"
	"passgate/src-server/model"
	"passgate/src-server/route"
	"passgate/src-server/utils"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

const usage = `usage:
  passgate [serve]                 run the HTTP server
  passgate set-role <userId> <role> create or update a user (user|staff|admin)
  passgate mint-token <userId>     print a bearer token for an existing user`

func setLogger(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func init() {
	// debug until LOG_LEVEL is parsed so config lines are visible
	setLogger(slog.LevelDebug)
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
}

func main() {
	config := utils.NewConfig()
	setLogger(config.GetLogLevel())

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		serve(config)
		return
	case "set-role":
		if len(os.Args) != 4 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = setRole(config, os.Args[2], os.Args[3])
	case "mint-token":
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = mintToken(config, os.Args[2])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func serve(config *utils.Config) {
	as := utils.NewAppState(config)
	core := admission.New(as.BunDB,
		admission.WithMaxTokenAttempts(config.GetTokenMaxAttempts()),
		admission.WithMetric(as.MetricChans),
	)

	metric.Init(as)

	server := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           route.NewHandler(as, core),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("cannot start HTTP server", "error", err)
			as.AppCloseSignalChan <- syscall.SIGTERM
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit", "port", config.GetPort())

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-as.AppCloseSignalChan

	slog.Info("Gracefully shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("can't shut down HTTP server cleanly", "error", err)
	}
	as.GracefulShutdown()
}

func setRole(config *utils.Config, userID, rawRole string) error {
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return err
	}
	ctx := context.Background()
	_, db, err := utils.OpenDB(ctx, config.GetDatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := (&model.User{ID: userID, Role: role}).Upsert(ctx, db); err != nil {
		return fmt.Errorf("can't upsert user: %w", err)
	}
	slog.Info("role set", "user", userID, "role", role)
	return nil
}

func mintToken(config *utils.Config, userID string) error {
	ctx := context.Background()
	_, db, err := utils.OpenDB(ctx, config.GetDatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := model.GetUser(ctx, db, userID); err != nil {
		return fmt.Errorf("can't find user %q: %w", userID, err)
	}
	token, err := jwt.Encode(userID, config.GetJWTSecret(), config.GetJWTExpire(), time.Now())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
