package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"thirdcoast.systems/inflow/internal/application"
	"thirdcoast.systems/inflow/internal/config"
	"thirdcoast.systems/inflow/internal/db"
	"thirdcoast.systems/inflow/internal/ingest"
	"thirdcoast.systems/inflow/internal/provider"
)

// batchFile is one ingestion invocation on disk: who is ingesting, from which
// subscription, and the raw provider payloads. For RSS a feed URL may be given
// instead of inline items; the feed is fetched and parsed here.
type batchFile struct {
	UserID         uuid.UUID       `json:"userId"`
	SubscriptionID uuid.UUID       `json:"subscriptionId"`
	Provider       string          `json:"provider"`
	FeedURL        string          `json:"feedUrl,omitempty"`
	Items          json.RawMessage `json:"items,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting ingest service")

	if len(os.Args) < 2 {
		slog.Error("usage: ingestd <batch-file.json> [...]")
		os.Exit(1)
	}

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	opts := []ingest.Option{ingest.WithChunkSize(conf.IngestChunkSize)}
	if !conf.DeadLetterEnable {
		opts = append(opts, ingest.WithoutDeadLetters())
	}
	pipeline := ingest.New(dbc.Store(), opts...)

	exitCode := 0
	for _, path := range os.Args[1:] {
		if err := runBatchFile(ctx, pipeline, path); err != nil {
			slog.Error("batch failed", "file", path, "error", err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func runBatchFile(ctx context.Context, pipeline *ingest.Pipeline, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}

	var bf batchFile
	if err := json.Unmarshal(data, &bf); err != nil {
		return fmt.Errorf("parse batch file: %w", err)
	}

	prov := provider.Provider(bf.Provider)
	transform, providerID, ok := ingest.TransformerFor(prov)
	if !ok {
		return fmt.Errorf("no transformer for provider %q", bf.Provider)
	}

	items, err := decodeItems(ctx, prov, bf)
	if err != nil {
		return err
	}

	res, err := pipeline.IngestBatch(ctx, ingest.BatchParams{
		UserID:         bf.UserID,
		SubscriptionID: bf.SubscriptionID,
		Provider:       prov,
		Items:          items,
		Transform:      transform,
		ProviderID:     providerID,
	})
	if err != nil {
		return err
	}

	slog.Info("batch complete",
		"file", path,
		"total", res.Total,
		"created", res.Created,
		"skipped", res.Skipped,
		"errors", res.Errors,
		"batches", res.BatchCount,
		"fallbacks", res.FallbackCount,
		"durationMs", res.DurationMillis,
	)
	for _, detail := range res.ErrorDetails {
		slog.Warn("item failed", "providerItemId", detail.ProviderID, "error", detail.Error)
	}
	return nil
}

func decodeItems(ctx context.Context, prov provider.Provider, bf batchFile) ([]any, error) {
	switch prov {
	case provider.YouTube:
		var videos []ingest.YouTubeVideo
		if err := json.Unmarshal(bf.Items, &videos); err != nil {
			return nil, fmt.Errorf("parse youtube items: %w", err)
		}
		items := make([]any, len(videos))
		for i := range videos {
			items[i] = videos[i]
		}
		return items, nil

	case provider.Spotify:
		var episodes []ingest.SpotifyEpisode
		if err := json.Unmarshal(bf.Items, &episodes); err != nil {
			return nil, fmt.Errorf("parse spotify items: %w", err)
		}
		items := make([]any, len(episodes))
		for i := range episodes {
			items[i] = episodes[i]
		}
		return items, nil

	case provider.RSS:
		if bf.FeedURL == "" {
			return nil, fmt.Errorf("rss batches require feedUrl")
		}
		feed, err := gofeed.NewParser().ParseURLWithContext(bf.FeedURL, ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch feed: %w", err)
		}
		items := make([]any, len(feed.Items))
		for i := range feed.Items {
			items[i] = feed.Items[i]
		}
		return items, nil
	}
	return nil, fmt.Errorf("unknown provider %q", prov)
}
