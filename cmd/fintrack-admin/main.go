package main

import (
	"context"
	"fmt"
	"os"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateStorageConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentAdmin)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.With(log.FieldComponent, log.ComponentBackend).Logger)

	app := &adminApp{
		backendName: backendConfig.Type.String(),
		dedupWindow: cfg.AlertDedupWindow,
		open: func(ctx context.Context) (*backend.BackendResult, error) {
			return factory.CreateBackend(ctx, backendConfig)
		},
	}

	err = newRootCmd(app).Execute()
	// PersistentPostRunE is skipped when a command fails.
	if cerr := app.close(); cerr != nil {
		logger.Error("Backend cleanup error", log.FieldError, cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
