package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracker-kronotrack/internal/config"
	"tracker-kronotrack/internal/db"
	"tracker-kronotrack/internal/server"
	"tracker-kronotrack/internal/settings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig   func() config.Config
	openSettings func(config.Config) (*settings.Store, error)
	connectRedis func(config.Config) *redis.Client
	notify       func(chan<- os.Signal, ...os.Signal)
	run          func(context.Context, config.Config, *settings.Store, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:   config.Load,
		openSettings: openSettings,
		connectRedis: db.ConnectRedis,
		notify:       signal.Notify,
		run:          Run,
	}
}

func openSettings(cfg config.Config) (*settings.Store, error) {
	return settings.Open(cfg.SettingsPath)
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	store, err := deps.openSettings(cfg)
	if err != nil {
		log.Printf("opening settings store failed: %v", err)
		return
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, store, rdb, signals, nil); err != nil {
		log.Printf("agent exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the session machine and the control API, resumes an interrupted
// session, and waits for termination signals. Shutdown drains in-flight
// uploads up to their budget.
func Run(ctx context.Context, cfg config.Config, store *settings.Store, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, store, rdb)

	machineCtx, stopMachine := context.WithCancel(ctx)
	defer stopMachine()
	go srv.Machine.Run(machineCtx)
	go srv.Machine.Resume()

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}

	stopMachine()
	srv.Ticket.Wait()

	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
