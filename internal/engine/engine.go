// Package engine runs the kameti units of work: payment reconciliation,
// payout processing and group administration. Each operation reads, decides
// and writes inside one storage transaction.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/metrics"
	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/notify"
	"github.com/mmynk/kameti/internal/storage"
)

var tracer = otel.Tracer("github.com/mmynk/kameti/internal/engine")

// Option configures the shared collaborators of the engine components.
type Option func(*deps)

type deps struct {
	sink    notify.Sink
	metrics *metrics.Metrics
	now     func() time.Time
}

func newDeps(opts []Option) deps {
	d := deps{
		sink: notify.LogSink{},
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithSink sets where notifications go. The default logs them.
func WithSink(sink notify.Sink) Option {
	return func(d *deps) { d.sink = sink }
}

// WithMetrics records outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) { d.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// notifyAll delivers messages after a commit. Delivery failures are logged
// and never undo the committed work.
func (d deps) notifyAll(ctx context.Context, msgs ...notify.Message) {
	for _, msg := range msgs {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = d.now()
		}
		if err := d.sink.Notify(ctx, msg); err != nil {
			slog.WarnContext(ctx, "Notification delivery failed", "kind", msg.Kind, "group_id", msg.GroupID, "error", err)
		}
	}
}

// storageError translates storage failures into the domain taxonomy.
// Domain errors pass through untouched.
func storageError(err error, message string) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, message, err)
	case errors.Is(err, storage.ErrVersionConflict):
		return apperrors.Wrap(apperrors.CodeConflict, "kameti was modified concurrently, retry", err)
	case errors.Is(err, storage.ErrDuplicate):
		return apperrors.Wrap(apperrors.CodeConflict, message, err)
	default:
		return apperrors.Wrap(apperrors.CodePersistenceFailure, message, err)
	}
}

func loadGroup(ctx context.Context, q storage.Queries, groupID string) (*models.Group, error) {
	if groupID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "group reference is required")
	}
	group, err := q.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storageError(err, "kameti "+groupID+" not found")
	}
	return group, nil
}

func requireOwner(g *models.Group, actor string) error {
	if actor == "" || actor != g.CreatedBy {
		return apperrors.WithMetadata(apperrors.CodePermissionDenied,
			"only the kameti owner can do this",
			map[string]string{"group_id": g.ID, "actor": actor},
		)
	}
	return nil
}

// dueDate is when a round's contribution is due. Groups without a start
// date count from their creation.
func dueDate(g *models.Group, round int) time.Time {
	start := g.StartDate
	if start.IsZero() {
		start = g.CreatedAt
	}
	return g.Frequency.DueDate(start, round)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
