package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ofiflow/config"
	"ofiflow/logger"
	"ofiflow/processor"
	"ofiflow/reader/databento"
	"ofiflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Ofiflow.Name,
		"version":     cfg.Ofiflow.Version,
		"instruments": len(cfg.Analysis.Instruments),
		"levels":      cfg.Analysis.Levels,
	}).Info("starting ofiflow")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	if cfg.Logging.DashboardName != "" && cfg.Storage.S3.Region != "" {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Ofiflow.Name, cfg.Logging.DashboardName)
	}

	if cfg.Data.Databento.Enabled {
		client := databento.NewClient(cfg.Data.Databento)
		if err := client.EnsureData(ctx, cfg.Analysis.Instruments, cfg.Data.Dir); err != nil {
			log.WithError(err).Error("historical data fetch failed")
			os.Exit(1)
		}
	}

	pipeline := processor.NewPipeline(cfg)
	result, err := pipeline.Run(ctx)
	if err != nil {
		log.WithError(err).Error("analysis run failed")
		os.Exit(1)
	}

	for sym, ferr := range result.Failed {
		log.WithError(ferr).WithFields(logger.Fields{"instrument": sym}).Warn("instrument excluded from results")
	}
	for sym, terr := range result.TargetErrors {
		log.WithError(terr).WithFields(logger.Fields{"instrument": sym}).Warn("no cross-impact regression for target")
	}

	resultWriter, err := writer.NewResultWriter(cfg)
	if err != nil {
		log.WithError(err).Error("failed to create result writer")
		os.Exit(1)
	}
	if err := resultWriter.WriteAll(ctx, result); err != nil {
		log.WithError(err).Error("failed to persist results")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"instruments": len(result.Instruments),
		"failed":      len(result.Failed),
		"targets":     len(result.CrossImpact),
	}).Info("ofiflow finished")
}
