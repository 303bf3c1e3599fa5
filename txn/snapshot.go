package txn

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/exp/maps"
)

// Snapshot is a point-in-time description of the external environment,
// captured immediately before and after an operation runs. Snapshots are
// diagnostic: they explain after the fact why a rollback was safe or unsafe.
// They are never merged or acted on programmatically.
type Snapshot struct {
	Timestamp        time.Time         `json:"timestamp"`
	WorkingDirectory string            `json:"workingDirectory"`
	CurrentReference string            `json:"currentReference"`
	PendingChanges   string            `json:"pendingChanges"`
	Environment      map[string]string `json:"environment"`
}

// Summary renders a single-line description suitable for audit trails and
// log fields.
func (s *Snapshot) Summary() string {
	if s == nil {
		return "<no snapshot>"
	}

	keys := maps.Keys(s.Environment)
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+s.Environment[k])
	}

	return fmt.Sprintf("ref=%s dir=%s pending=%q env{%s}",
		s.CurrentReference, s.WorkingDirectory, s.PendingChanges, strings.Join(pairs, " "))
}

// Capturer captures a Snapshot of the external system an operation mutates.
// A capture failure is reported to the caller but is never load-bearing: the
// coordinator logs it as a warning and continues without a snapshot.
type Capturer interface {
	Capture(ctx context.Context) (*Snapshot, error)
}

// CapturerFunc adapts a function to the Capturer interface.
type CapturerFunc func(ctx context.Context) (*Snapshot, error)

// Capture implements Capturer.
func (f CapturerFunc) Capture(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// EnvCapturer is the baseline Capturer: working directory plus a bounded
// allow-list of environment variables. Capturing the entire environment
// would be nondeterministic and would leak unrelated secrets into the audit
// trail, so only the listed names are recorded. Boundary packages provide
// richer capturers (e.g. gitops adds branch and working-tree status).
type EnvCapturer struct {
	// Dir is the working directory to record. Defaults to the process
	// working directory when empty.
	Dir string
	// AllowList names the environment variables to record. Unset variables
	// are omitted.
	AllowList []string
}

// Capture implements Capturer.
func (c *EnvCapturer) Capture(_ context.Context) (*Snapshot, error) {
	dir := c.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}

	env := make(map[string]string, len(c.AllowList))
	for _, name := range c.AllowList {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}

	return &Snapshot{
		Timestamp:        time.Now(),
		WorkingDirectory: dir,
		Environment:      env,
	}, nil
}
