// Package journal is the append-only audit trail: operational logs, inbound
// webhooks, and outbound venue responses. Entries are immutable once
// appended, ordered by a monotonic sequence number, and stamped with a São
// Paulo-offset instant regardless of host timezone.
package journal

import (
	"context"

	"github.com/google/uuid"

	"hlbridge/pkg/brtime"
)

// Kind tags the entry variants. The set is closed: Log, WebhookReceived,
// and VenueResponse are the only shapes the journal knows.
type Kind string

const (
	KindLog           Kind = "log"
	KindWebhook       Kind = "webhook"
	KindVenueResponse Kind = "venue_response"
)

// Meta is common to every entry: an external id, the store-assigned receive
// order, and the emission timestamp with the -03:00 offset attached.
type Meta struct {
	ID        string `bson:"id" json:"id"`
	Seq       int64  `bson:"seq" json:"seq"`
	Timestamp string `bson:"timestamp" json:"timestamp"`
}

// NewMeta stamps a fresh entry. Seq is left for the store to assign.
func NewMeta() Meta {
	return Meta{
		ID:        uuid.NewString(),
		Timestamp: brtime.Format(brtime.Now()),
	}
}

// Log is an operational log line.
type Log struct {
	Meta    `bson:",inline"`
	Level   string         `bson:"level" json:"level"`
	Message string         `bson:"message" json:"message"`
	Details map[string]any `bson:"details,omitempty" json:"details,omitempty"`
}

// WebhookReceived records one inbound signal payload exactly as received.
type WebhookReceived struct {
	Meta       `bson:",inline"`
	Payload    map[string]any `bson:"payload" json:"payload"`
	Status     string         `bson:"status" json:"status"`
	StrategyID string         `bson:"strategy_id" json:"strategy_id"`
	Source     string         `bson:"source" json:"source"`
}

// VenueResponse records the outcome of exactly one venue call, linked back
// to the webhook that caused it.
type VenueResponse struct {
	Meta       `bson:",inline"`
	Payload    map[string]any `bson:"payload" json:"payload"`
	Status     string         `bson:"status" json:"status"`
	StrategyID string         `bson:"strategy_id" json:"strategy_id"`
	OrderKind  string         `bson:"order_kind" json:"order_kind"`
	WebhookID  string         `bson:"webhook_id" json:"webhook_id"`
}

// Entry is the closed sum over the three variants.
type Entry interface {
	Kind() Kind
	meta() *Meta
}

func (e *Log) Kind() Kind             { return KindLog }
func (e *WebhookReceived) Kind() Kind { return KindWebhook }
func (e *VenueResponse) Kind() Kind   { return KindVenueResponse }

func (e *Log) meta() *Meta             { return &e.Meta }
func (e *WebhookReceived) meta() *Meta { return &e.Meta }
func (e *VenueResponse) meta() *Meta   { return &e.Meta }

// Store is the persistence surface. Append assigns the sequence number
// under the store's own serialization; queries return newest first.
//
// Strategy filters follow an explicit convention: a nil slice means
// unfiltered, a non-nil empty slice is a deliberate empty selection and
// yields no results.
type Store interface {
	Append(ctx context.Context, e Entry) error
	RecentLogs(ctx context.Context, limit int, level string) ([]Log, error)
	RecentWebhooks(ctx context.Context, limit int, strategyIDs []string) ([]WebhookReceived, error)
	RecentResponses(ctx context.Context, limit int, strategyIDs []string) ([]VenueResponse, error)
	ClearLogs(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
