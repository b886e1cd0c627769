// Command server runs the REST API, the websocket endpoint and the bus subscriber.
package main

import (
	"context"
	"os"
	"syscall"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"cinesync/internal/app"
	"cinesync/pkg/logger"
)

var configPaths = []string{
	"config/cinesync.yaml",
	"./config.yaml",
	"/etc/cinesync/cinesync.yaml",
}

func main() {
	cfg, path, err := app.LoadConfig(configPaths...)
	if err != nil {
		// logger level is part of the config, so fall back to info
		logger.New("info").Sugar().Fatalw("Failed to load configuration", "path", path, "error", err)
	}

	zl := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := zl.Sugar()
	if path != "" {
		log.Infow("Loaded configuration", "path", path)
	}

	a, err := app.New(context.Background(), cfg, app.ModeServer, zl)
	if err != nil {
		log.Fatalw("Failed to start", "error", err)
	}

	failed := a.Start(context.Background())
	go func() {
		if err, ok := <-failed; ok && err != nil {
			log.Errorw("Service stopped unexpectedly", "error", err)
			// route through the same graceful path as a signal
			_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"cinesync-server": a.Shutdown,
		},
	)
	exitCode := <-wait
	log.Infow("Stopped", "exit_code", exitCode)
	_ = zl.Sync()
	os.Exit(exitCode)
}
