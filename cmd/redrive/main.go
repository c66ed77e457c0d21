package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"thirdcoast.systems/inflow/internal/application"
	"thirdcoast.systems/inflow/internal/config"
	"thirdcoast.systems/inflow/internal/db"
)

// redrive inspects the dead-letter table. Replay of a failed item is a manual
// operator action: feed the printed payload back through ingestd.
func main() {
	limit := flag.Int("limit", 50, "maximum number of dead letters to show")
	showPayload := flag.Bool("payload", false, "print the serialized raw payload")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

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

	store := db.NewStore(pool)
	letters, err := store.ListDeadLetters(ctx, *limit)
	if err != nil {
		slog.Error("failed to list dead letters", "error", err)
		os.Exit(1)
	}

	if len(letters) == 0 {
		fmt.Println("no dead letters")
		return
	}

	fmt.Printf("%d dead letter(s):\n\n", len(letters))
	for _, d := range letters {
		fmt.Printf("%s  [%s/%s]  %s  (%s)\n",
			d.ID, d.Provider, d.ErrorType, d.ProviderItemID, humanize.Time(d.CreatedAt))
		fmt.Printf("    user=%s subscription=%s\n", d.UserID, d.SubscriptionID)
		fmt.Printf("    %s\n", d.ErrorMessage)
		if *showPayload && len(d.Payload) > 0 {
			fmt.Printf("    payload: %s\n", d.Payload)
		}
		fmt.Println()
	}
}
