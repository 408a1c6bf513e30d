package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"paperledger/internal/app"
	"paperledger/internal/config"
	"paperledger/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	configFlag := flag.String("config", "", "path to config file (overrides "+config.EnvConfigPath+")")
	flag.Parse()

	cfgPath := config.ResolvePath(*configFlag)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logFile, err := logger.SetupFile(logger.RotateOptions{
		Path:       cfg.App.LogPath,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
		MaxAgeDays: cfg.App.LogMaxAgeDays,
	})
	if err != nil {
		log.Fatalf("setup log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded from %s (env=%s)", cfgPath, cfg.App.Env)

	// Only the log level is applied live; everything else needs a restart.
	if err := config.Watch(cfgPath, func(next *config.Config) {
		if next.App.LogLevel != logger.Level() {
			logger.SetLevel(next.App.LogLevel)
			logger.Infof("log level changed to %s", logger.Level())
		}
	}); err != nil {
		logger.Warnf("config watch disabled: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("init app failed: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}
