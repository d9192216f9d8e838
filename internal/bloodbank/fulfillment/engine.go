// Package fulfillment builds match reports and advances blood requests
// through pending, partial and fulfilled.
package fulfillment

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"hemalink/internal/bloodbank/inventory"
	"hemalink/internal/bloodbank/matcher"
	"hemalink/internal/bloodbank/metrics"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/store"
	"hemalink/internal/storage"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/requestcontext"
)

const tracerName = "hemalink/internal/bloodbank/fulfillment"

// Engine couples donor matching with the inventory ledger.
type Engine struct {
	tx      storage.Tx
	reads   *store.Records
	matcher *matcher.Matcher
	ledger  *inventory.Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer overrides the global tracer provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New builds an engine. reads is normally bound to a storage.Guard; tx must
// be the raw backend.
func New(tx storage.Tx, reads *store.Records, ledger *inventory.Ledger, opts ...Option) *Engine {
	e := &Engine{
		tx:      tx,
		reads:   reads,
		matcher: matcher.New(reads),
		ledger:  ledger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// MatchReportFor builds the report for an existing request.
func (e *Engine) MatchReportFor(ctx context.Context, req *models.BloodRequest) (*models.MatchReport, error) {
	return e.BuildMatchReport(ctx, req.BloodGroup, req.UnitsNeeded, req.Location)
}

// BuildMatchReport is read only. Stock and the compatible donor pool are
// read concurrently; donors are scored at the request time carried by ctx.
func (e *Engine) BuildMatchReport(ctx context.Context, group models.BloodGroup, unitsNeeded int, location string) (*models.MatchReport, error) {
	start := time.Now()
	defer e.metrics.ObserveMatchReport(start)

	ctx, span := e.tracer.Start(ctx, "fulfillment.BuildMatchReport", trace.WithAttributes(
		attribute.String("blood_group", group.String()),
		attribute.Int("units_needed", unitsNeeded),
	))
	defer span.End()

	var (
		stock  int
		donors []models.Donor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		units, err := e.ledger.Get(gctx, group)
		stock = units
		return err
	})
	g.Go(func() error {
		found, err := e.matcher.FindCompatible(gctx, group, location)
		donors = found
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "match report failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build match report")
	}

	ranked := matcher.Rank(donors, requestcontext.Now(ctx))
	report := &models.MatchReport{
		BloodGroup:      group,
		UnitsNeeded:     unitsNeeded,
		StockUnits:      stock,
		TotalCompatible: len(ranked),
		Fulfillable:     stock >= unitsNeeded || len(ranked) > 0,
	}
	if len(ranked) > models.MatchReportSize {
		ranked = ranked[:models.MatchReportSize]
	}
	report.Donors = ranked

	span.SetAttributes(
		attribute.Int("stock_units", stock),
		attribute.Int("total_compatible", report.TotalCompatible),
		attribute.Bool("fulfillable", report.Fulfillable),
	)
	return report, nil
}

// Result is the outcome of one fulfillment.
type Result struct {
	Request   *models.BloodRequest   `json:"request"`
	Inventory *models.InventoryEntry `json:"inventory"`
	// Debited is the stock actually removed; less than the units fulfilled
	// when stock ran out.
	Debited int `json:"units_debited"`
}

// RecordFulfillment adds units to the request's fulfilled counter, advances
// its status and debits the same units from stock. The request and the
// inventory entry are written in one transaction holding both keys.
func (e *Engine) RecordFulfillment(ctx context.Context, requestID string, units int) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "fulfillment.RecordFulfillment", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.Int("units", units),
	))
	defer span.End()

	if units < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "units fulfilled must not be negative")
	}

	// The blood group never changes, so it is safe to learn it before
	// taking the locks it selects.
	current, err := e.reads.GetRequest(ctx, requestID)
	if err != nil {
		return nil, store.WrapErr(err, "blood request")
	}
	group := current.BloodGroup

	var result Result
	err = e.tx.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		recs := store.New(rs)
		now := requestcontext.Now(ctx)

		req, err := recs.GetRequest(ctx, requestID)
		if err != nil {
			return store.WrapErr(err, "blood request")
		}
		if err := req.CanFulfill(units); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeConflict, "blood request is already fulfilled")
			}
			return err
		}
		req.ApplyFulfillment(units, now)

		entry, debited, err := inventory.Apply(ctx, recs, group, units, models.DirectionRemove, now)
		if err != nil {
			return err
		}
		if err := recs.PutRequest(ctx, req); err != nil {
			return err
		}
		result = Result{Request: req, Inventory: entry, Debited: debited}
		return nil
	}, store.RequestKey(requestID), store.InventoryKey(group))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fulfillment failed")
		return nil, store.WrapErr(err, "blood request")
	}

	e.metrics.RecordFulfillment(string(result.Request.Status), group.String(), result.Debited)
	e.logger.InfoContext(ctx, "fulfillment recorded",
		"request_id", requestID,
		"blood_group", group.String(),
		"units", units,
		"units_debited", result.Debited,
		"status", string(result.Request.Status),
	)
	span.SetAttributes(attribute.String("status", string(result.Request.Status)))
	return &result, nil
}
