// Command assess compares two local images and prints the damage assessment
// as JSON.
//
//	assess -before pre.png -after post.png -disaster flood
//
// With -configured the images are uploaded to the image store named by the
// environment and the result is persisted to the configured result store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go-damage-assessor/internal/analyzer"
	"go-damage-assessor/internal/config"
	"go-damage-assessor/internal/factory"
	"go-damage-assessor/internal/logger"
	"go-damage-assessor/internal/repository"
	"go-damage-assessor/internal/service"
	"go-damage-assessor/internal/storage"
	analysisconfig "go-damage-assessor/pkg/config"
	"go-damage-assessor/pkg/models"
)

type options struct {
	before      string
	after       string
	level       string
	disaster    string
	region      string
	tuning      string
	diagnostics bool
	configured  bool
	timeout     time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.before, "before", "", "path to the pre-event image")
	flag.StringVar(&opts.after, "after", "", "path to the post-event image")
	flag.StringVar(&opts.level, "level", "", "analysis level: basic, standard or detailed")
	flag.StringVar(&opts.disaster, "disaster", "", "declared disaster type")
	flag.StringVar(&opts.region, "region", "", "free-form location label")
	flag.StringVar(&opts.tuning, "config", "", "analysis tuning YAML")
	flag.BoolVar(&opts.diagnostics, "diagnostics", false, "include heatmap and mask images")
	flag.BoolVar(&opts.configured, "configured", false, "use the stores configured through the environment")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "analysis timeout")
	flag.Parse()

	if opts.before == "" || opts.after == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger.SetLevel("warn")
	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "assess:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	tuning, err := analysisconfig.Load(opts.tuning)
	if err != nil {
		return err
	}

	images, results, err := openStores(ctx, opts.configured)
	if err != nil {
		return err
	}
	defer results.Close()
	defer repository.ReleaseImageStore(images)

	beforeID, err := upload(ctx, images, opts.before)
	if err != nil {
		return err
	}
	afterID, err := upload(ctx, images, opts.after)
	if err != nil {
		return err
	}

	svc := service.NewAssessmentService(service.Dependencies{
		Images:   images,
		Results:  results,
		Pipeline: analyzer.NewPipeline(),
	}, service.Options{
		Workers:         1,
		QueueSize:       1,
		AnalysisTimeout: opts.timeout,
		Tuning:          tuning,
	})
	defer svc.Close()

	result, err := svc.AnalyzeSync(ctx, models.AnalyzeRequest{
		BeforeImageID:      beforeID,
		AfterImageID:       afterID,
		AnalysisLevel:      models.AnalysisLevel(opts.level),
		DisasterType:       models.DisasterType(opts.disaster),
		Location:           opts.region,
		IncludeDiagnostics: opts.diagnostics,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func openStores(ctx context.Context, configured bool) (repository.ImageRepository, repository.ResultRepository, error) {
	if !configured {
		return storage.NewMemoryImageStore(), storage.NewMemoryResultStore(), nil
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	return factory.OpenStores(ctx, factory.NewStoreFactory(cfg))
}

func upload(ctx context.Context, images repository.ImageRepository, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	id, err := images.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return id, nil
}
