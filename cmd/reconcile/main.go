package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	purchasingapp "github.com/erp/purchasing/internal/application/purchasing"
	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/bootstrap"
	"github.com/erp/purchasing/internal/infrastructure/cache"
	"github.com/erp/purchasing/internal/infrastructure/config"
	"github.com/erp/purchasing/internal/infrastructure/persistence"
	"github.com/erp/purchasing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const backfillPageSize = 200

type command struct {
	usage   string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"backfill": {usage: "backfill [-purchase id] [-actor id]", summary: "Rebuild missing timeline events", run: (*app).backfill},
	"summary":  {usage: "summary -purchase id", summary: "Print payment and refund position as JSON", run: (*app).summary},
	"refund":   {usage: "refund -return id [-actor id]", summary: "Allocate the automatic refund for a return", run: (*app).refund},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run owns every deferred shutdown step, so failures return a code instead of exiting past them
func run(argv []string, stdout io.Writer) int {
	if len(argv) == 0 {
		printUsage(os.Stderr)
		return bootstrap.ExitUsage
	}
	name := argv[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage(os.Stderr)
		return bootstrap.ExitUsage
	}

	rt, err := bootstrap.Load(bootstrap.Options{TimeFormat: "2006-01-02T15:04:05.000Z07:00"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return bootstrap.ExitFailure
	}
	defer rt.Sync()
	log := rt.Logger.With(zap.String("command", name))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, rt.Config, log, stdout)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		return bootstrap.ExitFailure
	}
	defer a.close()

	if err := cmd.run(a, ctx, argv[1:]); err != nil {
		log.Error("Command failed", zap.Error(err))
		return bootstrap.ExitCode(err)
	}
	return bootstrap.ExitOK
}

type app struct {
	log      *zap.Logger
	out      io.Writer
	db       *persistence.Database
	repos    *persistence.Repositories
	services *purchasingapp.Services
	closers  []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer) (*app, error) {
	a := &app{log: log, out: out}

	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("meter provider: %w", err)
	}
	a.closers = append(a.closers, mp.Shutdown)

	metrics, err := telemetry.NewPurchasingMetrics(mp.Meter(telemetry.TracerName))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	db, err := persistence.NewDatabase(cfg.Database, cfg.Telemetry, cfg.Log.Level, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("database: %w", err)
	}
	a.db = db

	a.repos = persistence.NewRepositories(db.DB, persistence.NewReadRetry(cfg.Retry), cfg.Journal)

	caches, err := purchasingapp.NewQueryCaches(cfg.Cache, cfg.Redis, cache.SystemClock{}, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("query caches: %w", err)
	}

	a.services = purchasingapp.NewServices(purchasingapp.Ports{
		Purchases: a.repos.Purchases,
		Returns:   a.repos.Returns,
		Payments:  a.repos.Payments,
		Refunds:   a.repos.Refunds,
		Events:    a.repos.Events,
		Stock:     a.repos.Stock,
		Journal:   a.repos.Journal,
	}, caches, cfg.Refund.WindowDays,
		purchasingapp.WithLogger(log),
		purchasingapp.WithMetrics(metrics),
		purchasingapp.WithTracer(tp.Tracer(telemetry.TracerName)),
	)
	return a, nil
}

func (a *app) close() {
	if a.services != nil {
		if err := a.services.Queries.Close(); err != nil {
			a.log.Warn("Error closing query caches", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("Error closing database", zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("Error shutting down telemetry", zap.Error(err))
		}
	}
}

// backfill reconstructs missing timeline events for one purchase or all of them
func (a *app) backfill(ctx context.Context, args []string) error {
	fs := newFlagSet("backfill")
	purchaseFlag := fs.String("purchase", "", "Purchase ID (default: all purchases)")
	actorFlag := fs.String("actor", uuid.Nil.String(), "Actor recorded on backfilled events")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	actor, err := parseID("actor", *actorFlag)
	if err != nil {
		return err
	}

	if *purchaseFlag != "" {
		id, err := parseID("purchase id", *purchaseFlag)
		if err != nil {
			return err
		}
		result, err := a.services.Timeline.Backfill(ctx, id, actor)
		if err != nil {
			return err
		}
		a.log.Info("Backfill complete",
			zap.String("purchase_id", id.String()),
			zap.Int("created", len(result.Created)),
			zap.Int("skipped", result.Skipped),
		)
		return nil
	}

	var purchases, created, failed int
	filter := shared.DefaultFilter()
	filter.PageSize = backfillPageSize
	for {
		ids, err := a.repos.Purchases.ListIDs(ctx, filter)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result, err := a.services.Timeline.Backfill(ctx, id, actor)
			if err != nil {
				failed++
				a.log.Warn("Backfill failed", zap.String("purchase_id", id.String()), zap.Error(err))
				continue
			}
			purchases++
			created += len(result.Created)
		}
		if len(ids) < filter.PageSize {
			break
		}
		filter.Page++
	}

	a.log.Info("Backfill complete",
		zap.Int("purchases", purchases),
		zap.Int("created", created),
		zap.Int("failed", failed),
	)
	return nil
}

type summaryOutput struct {
	Payment *purchasingapp.PaymentSummary `json:"payment"`
	Refund  refundOutput                  `json:"refund"`
}

type refundOutput struct {
	TotalReturned           string `json:"total_returned"`
	CompletedRefunds        string `json:"completed_refunds"`
	PendingRefundAmount     string `json:"pending_refund_amount"`
	RefundDue               string `json:"refund_due"`
	RefundableNow           string `json:"refundable_now"`
	PaymentMadeAfterReturns bool   `json:"payment_made_after_returns"`
}

// summary prints the payment and refund position of a purchase as JSON
func (a *app) summary(ctx context.Context, args []string) error {
	fs := newFlagSet("summary")
	purchaseFlag := fs.String("purchase", "", "Purchase ID")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	id, err := parseID("purchase id", *purchaseFlag)
	if err != nil {
		return err
	}

	payment, err := a.services.Queries.PaymentSummary(ctx, id)
	if err != nil {
		return err
	}
	due, err := a.services.Refunds.RefundDue(ctx, id)
	if err != nil {
		return err
	}

	return printJSON(a.out, summaryOutput{
		Payment: payment,
		Refund: refundOutput{
			TotalReturned:           due.TotalReturned.StringFixed(2),
			CompletedRefunds:        due.CompletedRefunds.StringFixed(2),
			PendingRefundAmount:     due.PendingRefundAmount.StringFixed(2),
			RefundDue:               due.RefundDue.StringFixed(2),
			RefundableNow:           due.RefundableNow.StringFixed(2),
			PaymentMadeAfterReturns: due.PaymentMadeAfterReturns,
		},
	})
}

// refund allocates the automatic refund for a return
func (a *app) refund(ctx context.Context, args []string) error {
	fs := newFlagSet("refund")
	returnFlag := fs.String("return", "", "Return ID")
	actorFlag := fs.String("actor", uuid.Nil.String(), "Actor recorded on refund transactions")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	returnID, err := parseID("return id", *returnFlag)
	if err != nil {
		return err
	}
	actor, err := parseID("actor", *actorFlag)
	if err != nil {
		return err
	}

	result, err := a.services.Refunds.ProcessAutomaticRefund(ctx, returnID, actor)
	if err != nil && !errors.Is(err, purchasing.ErrRefundUnallocated) {
		return err
	}
	fields := []zap.Field{
		zap.String("return_id", returnID.String()),
		zap.Int("refunds", len(result.Refunds)),
		zap.String("allocated", result.Allocated.StringFixed(2)),
		zap.String("unallocated", result.Unallocated.StringFixed(2)),
	}
	if err != nil {
		// the refunds that fit were created, the rest needs a manual payout
		a.log.Warn("Refund partly allocated", fields...)
		return err
	}
	a.log.Info("Refund processed", fields...)
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return bootstrap.Usagef("%s: %v", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return bootstrap.Usagef("%s: unexpected arguments %q", fs.Name(), fs.Args())
	}
	return nil
}

func parseID(what, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, bootstrap.Usagef("invalid %s %q", what, value)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Purchasing Reconciliation Tool

Usage:
  reconcile <command> [flags]

Commands:
`)
	for _, name := range []string{"backfill", "summary", "refund"} {
		c := commands[name]
		fmt.Fprintf(w, "  %-38s %s\n", c.usage, c.summary)
	}
	fmt.Fprint(w, `
Configuration is read from config.toml and PURCHASING_* environment variables.
`)
}
