package snapshot

import (
	"fmt"
	"sort"

	"github.com/adjust-tools/callback-snapshot-manager/callback"
)

// Change records a field-level delta for an identity present in both
// snapshots.
type Change struct {
	Identity callback.Identity
	Before   callback.Record
	After    callback.Record
	Fields   []string
}

// Result classifies every identity from either snapshot into at most one of
// added (target only), removed (source only) or changed. Identities with
// equal records appear in none, and neither do disabled target-only
// records: a disabled record reconciles to an unconfigured callback, which
// a listing of remote state omits, so its absence from the source already
// satisfies it.
type Result struct {
	Added   []callback.Record
	Removed []callback.Record
	Changed []Change
}

func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

func (r Result) Summary() string {
	return fmt.Sprintf("%d added, %d removed, %d changed", len(r.Added), len(r.Removed), len(r.Changed))
}

// Diff computes the delta that turns source into target. Pure function:
// both snapshots are read only, and the result ordering is fixed by
// identity regardless of record order in either input.
func Diff(source, target Snapshot) Result {
	sourceByID := indexByIdentity(source.Records)
	targetByID := indexByIdentity(target.Records)

	ids := make([]callback.Identity, 0, len(sourceByID)+len(targetByID))
	for id := range sourceByID {
		ids = append(ids, id)
	}
	for id := range targetByID {
		if _, ok := sourceByID[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })

	var result Result
	for _, id := range ids {
		before, inSource := sourceByID[id]
		after, inTarget := targetByID[id]
		switch {
		case !inSource:
			if after.Enabled {
				result.Added = append(result.Added, after)
			}
		case !inTarget:
			result.Removed = append(result.Removed, before)
		default:
			if fields := changedFields(before, after); len(fields) > 0 {
				result.Changed = append(result.Changed, Change{
					Identity: id,
					Before:   before,
					After:    after,
					Fields:   fields,
				})
			}
		}
	}
	return result
}

func indexByIdentity(records []callback.Record) map[callback.Identity]callback.Record {
	byID := make(map[callback.Identity]callback.Record, len(records))
	for _, r := range records {
		byID[r.Identity()] = r
	}
	return byID
}

// changedFields compares the fields that reconciliation can push remotely.
// URL templates are compared byte for byte: whitespace or encoding
// differences count as changes, so a remote edit is never dropped as
// cosmetic. Placeholder lists are compared as sets. AppName is display
// metadata and takes no part in the comparison.
func changedFields(before, after callback.Record) []string {
	var fields []string
	if before.URL != after.URL {
		fields = append(fields, "url")
	}
	if !samePlaceholderSet(before.Placeholders, after.Placeholders) {
		fields = append(fields, "placeholders")
	}
	if before.Enabled != after.Enabled {
		fields = append(fields, "enabled")
	}
	return fields
}

func samePlaceholderSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, name := range a {
		set[name]++
	}
	for _, name := range b {
		set[name]--
		if set[name] < 0 {
			return false
		}
	}
	return true
}
