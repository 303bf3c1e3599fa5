package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shipstream/shipstream/txn"
)

// Record is the durable trace of one terminal transaction. The engine keeps
// everything in memory; this is the caller-side record that survives the
// process for post-mortems.
type Record struct {
	ID          string        `toml:"id"`
	Description string        `toml:"description"`
	State       string        `toml:"state"`
	Error       string        `toml:"error,omitempty"`
	RecordedAt  time.Time     `toml:"recorded_at"`
	Metrics     RecordMetrics `toml:"metrics"`
	AuditTrail  []string      `toml:"audit_trail"`
}

// RecordMetrics mirrors txn.Metrics in a TOML-friendly shape.
type RecordMetrics struct {
	TotalOps  int    `toml:"total_ops"`
	Succeeded int    `toml:"succeeded"`
	Failed    int    `toml:"failed"`
	Duration  string `toml:"duration"`
}

// History persists one TOML file per terminal transaction under a
// directory.
type History struct {
	dir string
}

// NewHistory creates a history store rooted at dir, creating it if needed.
func NewHistory(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	return &History{dir: dir}, nil
}

// Save writes the transaction's terminal record. Saving a live transaction
// is rejected: the record is a final outcome, not a progress report.
func (h *History) Save(t *txn.Transaction) error {
	state := t.State()
	if !state.Terminal() {
		return fmt.Errorf("transaction %q is still %s; only terminal transactions are recorded", t.ID(), state)
	}

	metrics := t.Metrics()
	rec := Record{
		ID:          t.ID(),
		Description: t.Description(),
		State:       state.String(),
		RecordedAt:  time.Now().UTC(),
		Metrics: RecordMetrics{
			TotalOps:  metrics.TotalOps,
			Succeeded: metrics.Succeeded,
			Failed:    metrics.Failed,
			Duration:  metrics.Duration.String(),
		},
		AuditTrail: t.AuditTrail(),
	}
	if err := t.Err(); err != nil {
		rec.Error = err.Error()
	}

	data, err := toml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	if err := os.WriteFile(h.path(t.ID()), data, 0o644); err != nil {
		return fmt.Errorf("write history record: %w", err)
	}

	return nil
}

// Load reads the record for a transaction id.
func (h *History) Load(id string) (*Record, error) {
	data, err := os.ReadFile(h.path(id))
	if err != nil {
		return nil, fmt.Errorf("read history record: %w", err)
	}

	var rec Record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode history record %q: %w", id, err)
	}

	return &rec, nil
}

// List returns every record in the store, most recent first.
func (h *History) List() ([]*Record, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, fmt.Errorf("list history directory: %w", err)
	}

	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		rec, err := h.Load(entry.Name()[:len(entry.Name())-len(".toml")])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt.After(records[j].RecordedAt)
	})

	return records, nil
}

func (h *History) path(id string) string {
	return filepath.Join(h.dir, id+".toml")
}
