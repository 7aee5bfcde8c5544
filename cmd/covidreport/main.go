package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rewired-gh/covidboard/internal/app"
	"github.com/rewired-gh/covidboard/internal/config"
	"github.com/rewired-gh/covidboard/internal/logger"
	"github.com/rewired-gh/covidboard/internal/models"
	"github.com/rewired-gh/covidboard/internal/pipeline"
	"github.com/rewired-gh/covidboard/internal/present"
)

var (
	configPath = flag.String("config", "", "Path to configuration file (defaults and env only when empty)")
	source     = flag.String("source", "", "Source variant: per_entity or bulk")
	entity     = flag.String("entity", "", "Entity key (country code for per_entity, location name for bulk)")
	metric     = flag.String("metric", "", "Metric to list over time")
	lastN      = flag.Int("last", 14, "Number of most recent points to print")
	chartPath  = flag.String("chart", "", "Write a PNG line chart to this path")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	pipe, err := app.NewPipeline(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline: %v", err)
	}

	variant, err := models.ParseVariant(*source, pipe.Config().DefaultVariant)
	if err != nil {
		logger.Fatal("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OWID.Timeout*time.Duration(cfg.OWID.MaxRetries+1))
	defer cancel()

	res, err := pipe.Run(ctx, pipeline.Query{Variant: variant, Entity: *entity, Metric: *metric})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Report failed: %v\n", err)
		os.Exit(1)
	}

	present.WriteReport(os.Stdout, res, *lastN)

	if *chartPath != "" {
		if err := writeChart(*chartPath, res.Series); err != nil {
			fmt.Fprintf(os.Stderr, "Chart failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nChart written to %s\n", *chartPath)
	}
}

func writeChart(path string, series models.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := present.RenderLineChart(f, series, 1000, 450); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
