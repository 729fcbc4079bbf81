package journal

import (
	"context"
	"log/slog"
)

// Publisher receives every appended entry, typically fanning it out to
// live dashboard streams. Implementations must not block.
type Publisher interface {
	Publish(e Entry)
}

// Recorder is the write-side convenience over a Store: Log entries are
// dual-written to slog and the journal, and every appended entry is pushed
// to the publisher. Store failures are logged and swallowed; the trade
// flow never stalls on the audit trail.
type Recorder struct {
	store  Store
	logger *slog.Logger
	pub    Publisher // may be nil
}

func NewRecorder(store Store, logger *slog.Logger, pub Publisher) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With("component", "journal"),
		pub:    pub,
	}
}

// Store exposes the underlying store for the read-side handlers.
func (r *Recorder) Store() Store {
	return r.store
}

// Log appends an operational log entry and mirrors it to slog.
func (r *Recorder) Log(ctx context.Context, level, message string, details map[string]any) {
	switch level {
	case "ERROR":
		r.logger.Error(message, "details", details)
	case "WARNING":
		r.logger.Warn(message, "details", details)
	default:
		r.logger.Info(message, "details", details)
	}

	e := &Log{Meta: NewMeta(), Level: level, Message: message, Details: details}
	r.append(ctx, e)
}

// Webhook appends an inbound-webhook entry and returns its id for linking
// venue responses back to it.
func (r *Recorder) Webhook(ctx context.Context, payload map[string]any, status, strategyID, source string) string {
	e := &WebhookReceived{
		Meta:       NewMeta(),
		Payload:    payload,
		Status:     status,
		StrategyID: strategyID,
		Source:     source,
	}
	r.append(ctx, e)
	return e.ID
}

// VenueResponse appends the outcome of one venue call.
func (r *Recorder) VenueResponse(ctx context.Context, payload map[string]any, status, strategyID, orderKind, webhookID string) {
	e := &VenueResponse{
		Meta:       NewMeta(),
		Payload:    payload,
		Status:     status,
		StrategyID: strategyID,
		OrderKind:  orderKind,
		WebhookID:  webhookID,
	}
	r.append(ctx, e)
}

func (r *Recorder) append(ctx context.Context, e Entry) {
	if err := r.store.Append(ctx, e); err != nil {
		r.logger.Error("journal append failed", "kind", e.Kind(), "error", err)
		return
	}
	if r.pub != nil {
		r.pub.Publish(e)
	}
}
