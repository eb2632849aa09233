package main

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"whisprly/internal/config"
	"whisprly/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "whisprly:", err)
		if errors.Is(err, config.ErrConfigNotFound) {
			fmt.Fprintln(os.Stderr, "create ~/.config/whisprly/config.yaml or set WHISPRLY_CONFIG")
		}
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "whisprly:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	app := NewApp(cfg, logger)
	err = wails.Run(&options.App{
		Title:             "Whisprly",
		Width:             360,
		Height:            420,
		StartHidden:       false,
		HideWindowOnClose: false,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		logger.Error("wails exited with error", zap.Error(err))
		os.Exit(1)
	}
}
