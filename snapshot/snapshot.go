package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adjust-tools/callback-snapshot-manager/callback"
)

var ErrDuplicateIdentity = errors.New("duplicate callback identity")

// Snapshot is a point-in-time copy of the callback configuration. Record
// order is preserved through store/load round-trips so that snapshot files
// diff cleanly under version control.
type Snapshot struct {
	CapturedAt  time.Time         `yaml:"capturedAt"`
	Environment string            `yaml:"environment,omitempty"`
	Records     []callback.Record `yaml:"records"`
}

// New stamps a snapshot with the current capture time. The timestamp is
// truncated to whole seconds in UTC so the YAML round-trip is exact.
func New(environment string, records []callback.Record) Snapshot {
	return Snapshot{
		CapturedAt:  time.Now().UTC().Truncate(time.Second),
		Environment: environment,
		Records:     records,
	}
}

// Validate rejects snapshots in which two records share an identity. A
// collision means a hand-edited or corrupted document; silently keeping one
// of the two would make the diff outcome depend on record order.
func (s Snapshot) Validate() error {
	seen := make(map[callback.Identity]struct{}, len(s.Records))
	for _, r := range s.Records {
		id := r.Identity()
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%s: %w", id, ErrDuplicateIdentity)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func Store(w io.Writer, s Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}

func Load(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	// An empty record list decodes as a non-nil empty slice; fold it back
	// to nil so an empty capture round-trips to the value New produced.
	if len(s.Records) == 0 {
		s.Records = nil
	}
	return s, nil
}

func WriteFile(path string, s Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	if err = Store(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()
	return Load(f)
}
