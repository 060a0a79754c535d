package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	metrics "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"

	"github.com/adjust-tools/callback-snapshot-manager/callback"
	"github.com/adjust-tools/callback-snapshot-manager/snapshot"
)

// Gateway is the remote callback store mutations are applied against.
type Gateway interface {
	List(ctx context.Context) ([]callback.Record, error)
	Create(ctx context.Context, record callback.Record) (callback.Record, error)
	Update(ctx context.Context, id callback.Identity, record callback.Record) (callback.Record, error)
	Delete(ctx context.Context, id callback.Identity) error
}

// Failure records one mutation the gateway rejected.
type Failure struct {
	Identity callback.Identity
	Op       string
	Cause    string
}

// Report is the outcome of one reconciliation run. A non-empty failure
// list is the caller's terminal condition, not the engine's: the engine
// always drains the whole diff.
type Report struct {
	RunID    string
	Deleted  []callback.Identity
	Created  []callback.Identity
	Updated  []callback.Identity
	Failures []Failure
}

func (r Report) Ok() bool {
	return len(r.Failures) == 0
}

func (r Report) Summary() string {
	return fmt.Sprintf("%d created, %d updated, %d deleted, %d failed",
		len(r.Created), len(r.Updated), len(r.Deleted), len(r.Failures))
}

var (
	createdCounter  = metrics.GetOrRegisterCounter("reconcile.created", metrics.DefaultRegistry)
	updatedCounter  = metrics.GetOrRegisterCounter("reconcile.updated", metrics.DefaultRegistry)
	deletedCounter  = metrics.GetOrRegisterCounter("reconcile.deleted", metrics.DefaultRegistry)
	failedCounter   = metrics.GetOrRegisterCounter("reconcile.failed", metrics.DefaultRegistry)
	mutationLatency = metrics.GetOrRegisterTimer("reconcile.mutation", metrics.DefaultRegistry)
)

// Apply pushes the diff through the gateway one mutation at a time:
// deletions first, then creations, then updates. Deleting before creating
// keeps an identity removed-and-readded in the same pass from colliding.
// A failed mutation is recorded and processing moves on; every mutation is
// independently committed, so a rerun after an interruption diffs down to
// only the remaining delta. No retries here; transport-level retry belongs
// to the gateway.
func Apply(ctx context.Context, diff snapshot.Result, gw Gateway) Report {
	report := Report{RunID: uuid.NewString()}
	lg := log.WithField("run", report.RunID)

	for _, record := range diff.Removed {
		id := record.Identity()
		err := timed(func() error { return gw.Delete(ctx, id) })
		if err != nil {
			report.fail(lg, id, "delete", err)
			continue
		}
		deletedCounter.Inc(1)
		report.Deleted = append(report.Deleted, id)
		lg.WithField("callback", id.String()).Debug("Deleted callback")
	}

	for _, record := range diff.Added {
		id := record.Identity()
		err := timed(func() error {
			_, createErr := gw.Create(ctx, record)
			return createErr
		})
		if err != nil {
			report.fail(lg, id, "create", err)
			continue
		}
		createdCounter.Inc(1)
		report.Created = append(report.Created, id)
		lg.WithField("callback", id.String()).Debug("Created callback")
	}

	for _, change := range diff.Changed {
		id := change.Identity
		err := timed(func() error {
			_, updateErr := gw.Update(ctx, id, change.After)
			return updateErr
		})
		if err != nil {
			report.fail(lg, id, "update", err)
			continue
		}
		updatedCounter.Inc(1)
		report.Updated = append(report.Updated, id)
		lg.WithField("callback", id.String()).WithField("fields", change.Fields).Debug("Updated callback")
	}

	return report
}

func (r *Report) fail(lg *log.Entry, id callback.Identity, op string, err error) {
	failedCounter.Inc(1)
	r.Failures = append(r.Failures, Failure{Identity: id, Op: op, Cause: err.Error()})
	lg.WithError(err).WithField("callback", id.String()).Warnf("Failed to %s callback", op)
}

func timed(fn func() error) error {
	var err error
	mutationLatency.Time(func() { err = fn() })
	return err
}
