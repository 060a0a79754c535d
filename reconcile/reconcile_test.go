package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjust-tools/callback-snapshot-manager/callback"
	"github.com/adjust-tools/callback-snapshot-manager/snapshot"
)

// memGateway is an in-memory remote callback store. It records the mutation
// order and can be told to reject specific identities.
type memGateway struct {
	records map[callback.Identity]callback.Record
	failing map[callback.Identity]bool
	ops     []string
}

func newMemGateway(records ...callback.Record) *memGateway {
	g := &memGateway{
		records: map[callback.Identity]callback.Record{},
		failing: map[callback.Identity]bool{},
	}
	for _, r := range records {
		g.records[r.Identity()] = r
	}
	return g
}

func (g *memGateway) List(ctx context.Context) ([]callback.Record, error) {
	var records []callback.Record
	for _, r := range g.records {
		records = append(records, r)
	}
	callback.SortRecords(records)
	return records, nil
}

func (g *memGateway) Create(ctx context.Context, record callback.Record) (callback.Record, error) {
	id := record.Identity()
	g.ops = append(g.ops, "create "+id.String())
	if g.failing[id] {
		return callback.Record{}, errors.New("remote rejected the mutation")
	}
	g.records[id] = record
	return record, nil
}

func (g *memGateway) Update(ctx context.Context, id callback.Identity, record callback.Record) (callback.Record, error) {
	g.ops = append(g.ops, "update "+id.String())
	if g.failing[id] {
		return callback.Record{}, errors.New("remote rejected the mutation")
	}
	g.records[id] = record
	return record, nil
}

func (g *memGateway) Delete(ctx context.Context, id callback.Identity) error {
	g.ops = append(g.ops, "delete "+id.String())
	if g.failing[id] {
		return errors.New("remote rejected the mutation")
	}
	delete(g.records, id)
	return nil
}

func record(appToken, kind, url string) callback.Record {
	return callback.Record{AppToken: appToken, Kind: kind, URL: url, Enabled: true}
}

func TestApplyMutationOrder(t *testing.T) {
	toRemove := record("abc123", "click", "https://x/c")
	toChange := record("abc123", "install", "https://x/i")
	changed := record("abc123", "install", "https://x/i?adid={adid}")
	toAdd := record("def456", "install", "https://y/i")

	gw := newMemGateway(toRemove, toChange)
	remote := snapshot.Snapshot{Records: []callback.Record{toRemove, toChange}}
	target := snapshot.Snapshot{Records: []callback.Record{changed, toAdd}}

	report := Apply(context.Background(), snapshot.Diff(remote, target), gw)

	require.True(t, report.Ok())
	assert.Equal(t, []string{
		"delete abc123/click",
		"create def456/install",
		"update abc123/install",
	}, gw.ops)
	assert.Len(t, report.Deleted, 1)
	assert.Len(t, report.Created, 1)
	assert.Len(t, report.Updated, 1)
	assert.NotEmpty(t, report.RunID)
}

func TestApplyContinuesPastFailures(t *testing.T) {
	working := record("abc123", "install", "https://x/i")
	failing := record("abc123", "session", "https://x/s")

	gw := newMemGateway()
	gw.failing[failing.Identity()] = true

	target := snapshot.Snapshot{Records: []callback.Record{working, failing}}
	report := Apply(context.Background(), snapshot.Diff(snapshot.Snapshot{}, target), gw)

	require.False(t, report.Ok())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, failing.Identity(), report.Failures[0].Identity)
	assert.Equal(t, "create", report.Failures[0].Op)
	assert.NotEmpty(t, report.Failures[0].Cause)

	// the working record still went through
	assert.Equal(t, []callback.Identity{working.Identity()}, report.Created)
	assert.Contains(t, gw.records, working.Identity())
}

// After a fully successful reconciliation the remote state diffs down to
// nothing, so reruns are safe on partially applied diffs.
func TestApplyRerunConverges(t *testing.T) {
	stale := record("abc123", "click", "https://x/c")
	gw := newMemGateway(stale)

	target := snapshot.Snapshot{Records: []callback.Record{
		record("abc123", "install", "https://x/i"),
		record("def456", "install", "https://y/i"),
	}}

	remote, err := gw.List(context.Background())
	require.NoError(t, err)
	report := Apply(context.Background(), snapshot.Diff(snapshot.Snapshot{Records: remote}, target), gw)
	require.True(t, report.Ok())

	remote, err = gw.List(context.Background())
	require.NoError(t, err)
	rerun := snapshot.Diff(snapshot.Snapshot{Records: remote}, target)
	assert.True(t, rerun.Empty(), fmt.Sprintf("expected convergence, got %s", rerun.Summary()))
}

func TestApplyEmptyDiffIsANoop(t *testing.T) {
	gw := newMemGateway()
	report := Apply(context.Background(), snapshot.Result{}, gw)
	assert.True(t, report.Ok())
	assert.Empty(t, gw.ops)
}
