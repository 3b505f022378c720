package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"optionsViewer/internal/config"
	"optionsViewer/internal/dashboard"
	"optionsViewer/internal/export"
	"optionsViewer/internal/finance"
	"optionsViewer/internal/logging"
	"optionsViewer/internal/server"
	"optionsViewer/internal/storage"
	"optionsViewer/internal/telegram"
	"optionsViewer/internal/thetadata"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file loaded")
	}
	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if err := logging.Setup(cfg.Logging, "optionsViewer"); err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatal(err)
	}

	// Ensure parent directory for the DB exists
	_ = os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.Storage.DBPath + "?_fk=1")
	if err != nil {
		logrus.Fatal(err)
	}
	defer db.Close()
	if err := storage.InitSchema(db); err != nil {
		logrus.Fatal(err)
	}
	store := storage.NewStore(db)
	if err := store.ResetSessions(); err != nil {
		logrus.Fatalf("db: clearing sessions: %v", err)
	}
	logrus.Infof("db: opened sqlite at %s", cfg.Storage.DBPath)

	theta := thetadata.NewClient(cfg.Theta.BaseURL, cfg.Theta.Timeout)
	quotes, err := finance.NewProvider(finance.ProviderOptions{
		Provider:       cfg.Quotes.Provider,
		Timeout:        cfg.Quotes.Timeout,
		AlpacaKey:      cfg.Quotes.Alpaca.APIKey,
		AlpacaSecret:   cfg.Quotes.Alpaca.APISecret,
		AlpacaDataURL:  cfg.Quotes.Alpaca.DataURL,
		AlpacaTradeURL: cfg.Quotes.Alpaca.BaseURL,
		AlpacaDataFeed: cfg.Quotes.Alpaca.Feed,
	})
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.Infof("quotes: using %s, options from %s", quotes.Name(), cfg.Theta.BaseURL)

	variant := dashboard.Variant{
		RightSelectable: *cfg.Dashboard.RightSelectable,
		PerPanelStyles:  *cfg.Dashboard.PerPanelStyles,
	}
	resolver := dashboard.NewResolver(theta, variant)
	if start, err := cfg.DefaultStart(); err == nil {
		resolver.SetDefaultStart(start)
	}
	pipeline := dashboard.NewPipeline(theta, quotes, variant)
	charts := finance.NewCharts(cfg.Dashboard.ChartCacheTTL)
	presenter := dashboard.NewPresenter(charts)

	tg, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.WebhookPublicURL, telegram.Deps{
		Store:     store,
		Resolver:  resolver,
		Pipeline:  pipeline,
		Presenter: presenter,
		Usage:     charts,
		Exporter:  export.NewWriter(cfg.Export.Dir),
		Timeout:   cfg.Dashboard.RenderTimeout,
	})
	if err != nil {
		logrus.Fatal(err)
	}

	api := server.NewAPI(resolver, pipeline, presenter, cfg.Dashboard.RenderTimeout)
	mux := server.NewHTTPMux(tg.WebhookHandler, api)
	addr := ":" + cfg.Server.Port
	logrus.Infof("http: listening on %s", addr)
	if err := server.ListenAndServe(addr, mux); err != nil {
		logrus.Errorf("server error: %v", err)
		os.Exit(1)
	}
}
