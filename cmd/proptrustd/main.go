package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/proptrust/proptrust/internal/classify"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/engine"
	"github.com/proptrust/proptrust/internal/export"
	"github.com/proptrust/proptrust/internal/ledger"
	"github.com/proptrust/proptrust/internal/metrics"
	"github.com/proptrust/proptrust/internal/ner"
	"github.com/proptrust/proptrust/internal/ocr"
	"github.com/proptrust/proptrust/internal/repository"
	"github.com/proptrust/proptrust/internal/risk"
	"github.com/proptrust/proptrust/internal/server"
	"github.com/proptrust/proptrust/internal/translate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(repository.Config{
		Backend: cfg.Database.Backend,
		Path:    cfg.Database.Path,
		DSN:     cfg.Database.DSN,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	var chain ledger.Ledger
	switch cfg.Ledger.Backend {
	case "remote":
		chain = ledger.NewRemote(cfg.Ledger.Endpoint, cfg.Ledger.Identity,
			&http.Client{Timeout: cfg.Ledger.Timeout}, logger)
	default:
		chain, err = ledger.NewLocal(db, cfg.Ledger.Identity, logger)
		if err != nil {
			logger.Error("opening local ledger", "error", err)
			os.Exit(1)
		}
	}
	defer func() {
		if err := chain.Close(); err != nil {
			logger.Warn("closing ledger", "error", err)
		}
	}()

	var translator translate.Translator = translate.Passthrough{}
	if cfg.Translator.Endpoint != "" {
		translator, err = translate.NewClient(translate.Config{
			Endpoint:      cfg.Translator.Endpoint,
			CacheCapacity: cfg.Cache.TranslationCapacity,
		}, &http.Client{Timeout: cfg.Translator.Timeout}, logger)
		if err != nil {
			logger.Error("building translator", "error", err)
			os.Exit(1)
		}
	}
	defer func() {
		if err := translator.Close(); err != nil {
			logger.Warn("closing translator", "error", err)
		}
	}()

	var classifier classify.Classifier
	switch cfg.Classifier.Backend {
	case "remote":
		classifier = classify.NewRemote(cfg.Classifier.Endpoint,
			&http.Client{Timeout: cfg.Classifier.Timeout}, logger)
	default:
		classifier = classify.NewRules()
	}

	var model ner.Model = ner.NopModel{}
	if cfg.NER.Endpoint != "" {
		model = ner.NewModelClient(cfg.NER.Endpoint, &http.Client{Timeout: cfg.Extraction.Timeout}, logger)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	verifications := repository.NewVerificationRepository(db, logger)
	orchestrator := engine.NewOrchestrator(engine.Config{
		Timeouts: engine.Timeouts{
			Extraction:     cfg.Extraction.Timeout,
			Translation:    cfg.Translator.Timeout,
			Classification: cfg.Classifier.Timeout,
			Ledger:         cfg.Ledger.Timeout,
		},
		ConfidenceFloor: cfg.Classifier.ConfidenceFloor,
	}, engine.Deps{
		Extractor: ocr.NewExtractor(ocr.Config{
			TesseractLang: cfg.Extraction.TesseractLang,
			TessdataDir:   cfg.Extraction.TessdataDir,
			DPI:           cfg.Extraction.DPI,
			MaxPages:      cfg.Extraction.MaxPages,
		}, logger),
		Translator:    translator,
		Entities:      ner.NewExtractor(model, cfg.NER.ModelFloor, logger),
		Classifier:    classifier,
		Scorer:        risk.NewScorer(cfg.Risk.DataQualityCharsFloor),
		Ledger:        chain,
		Verifications: verifications,
		Tampers:       repository.NewTamperRepository(db, logger),
		Audits:        repository.NewAuditRepository(db, logger),
		Metrics:       m,
	}, logger)

	e := server.New(&server.Handler{
		Engine:  orchestrator,
		Ledger:  chain,
		Stats:   repository.NewStatsRepository(db, logger),
		Audits:  repository.NewAuditRepository(db, logger),
		Export:  export.NewService(verifications, logger),
		Metrics: reg,
		Logger:  logger,
	})

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("stopped")
}
