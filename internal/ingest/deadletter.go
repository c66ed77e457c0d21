package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/inflow/internal/provider"
)

// DeadLetterWriter appends failure records for operator inspection. Writes are
// fire-and-log: a dead-letter outage must never propagate into the ingestion
// result.
type DeadLetterWriter struct {
	store   Store
	log     *slog.Logger
	enabled bool
}

func NewDeadLetterWriter(store Store, log *slog.Logger, enabled bool) *DeadLetterWriter {
	if log == nil {
		log = slog.Default()
	}
	return &DeadLetterWriter{store: store, log: log, enabled: enabled}
}

// Write serializes the raw payload, classifies the cause and appends a record.
func (w *DeadLetterWriter) Write(ctx context.Context, subscriptionID, userID uuid.UUID, p provider.Provider, providerItemID string, raw any, cause error) {
	if !w.enabled {
		return
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		w.log.Warn("dead letter payload not serializable", "provider", p, "providerItemId", providerItemID, "error", err)
		payload, _ = json.Marshal(fmt.Sprint(raw))
	}

	rec := DeadLetter{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Provider:       p,
		ProviderItemID: providerItemID,
		Payload:        payload,
		ErrorMessage:   cause.Error(),
		ErrorType:      Classify(cause),
		Detail:         fmt.Sprintf("%+v", cause),
		CreatedAt:      time.Now().UTC(),
	}

	if err := w.store.InsertDeadLetter(ctx, rec); err != nil {
		w.log.Warn("dead letter write failed",
			"provider", p, "providerItemId", providerItemID,
			"errorType", rec.ErrorType, "error", err)
	}
}
