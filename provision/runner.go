// Package provision is the infrastructure-provisioning boundary: a thin
// exec-based wrapper around the provisioning binary plus builders that
// package plan and apply as transaction operations. Apply's inverse is a
// destroy scoped to the resources the apply targeted; an unscoped apply has
// no safe automatic inverse and rolls back in degraded mode.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shipstream/shipstream/pkg/logger"
)

// Service is the provisioning surface the operation builders consume.
// Runner is the production implementation; tests supply fakes.
type Service interface {
	Plan(ctx context.Context, planFile string, targets []string) error
	Apply(ctx context.Context, planFile string, targets []string) error
	Destroy(ctx context.Context, targets []string) error
	Output(ctx context.Context) (map[string]json.RawMessage, error)
}

// runFunc invokes the provisioning binary in dir with args and returns
// trimmed stdout.
type runFunc func(ctx context.Context, dir string, args ...string) (string, error)

// Runner invokes the provisioning binary against one configuration
// directory.
type Runner struct {
	binary string
	dir    string
	lggr   logger.Logger
	run    runFunc
}

var _ Service = (*Runner)(nil)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunFunc replaces the exec-backed invoker. Intended for tests.
func WithRunFunc(run runFunc) RunnerOption {
	return func(r *Runner) { r.run = run }
}

// NewRunner creates a Runner for the configuration at dir using the named
// provisioning binary (for example "terraform" or "tofu"). The binary is
// resolved at construction so a missing tool fails fast instead of failing
// the first operation of a transaction.
func NewRunner(binary, dir string, lggr logger.Logger, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{binary: binary, dir: dir, lggr: lggr}
	for _, opt := range opts {
		opt(r)
	}
	if r.run == nil {
		if _, err := exec.LookPath(binary); err != nil {
			return nil, fmt.Errorf("provisioning binary %q not found: %w", binary, err)
		}
		r.run = r.execBinary
	}

	return r, nil
}

// Dir returns the configuration directory the runner operates on.
func (r *Runner) Dir() string { return r.dir }

func (r *Runner) execBinary(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, append([]string{"-chdir=" + dir}, args...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.lggr.Debugw("Invoking provisioning binary", "binary", r.binary, "dir", dir, "args", args)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", r.binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Plan writes an execution plan to planFile, optionally restricted to the
// given resource targets.
func (r *Runner) Plan(ctx context.Context, planFile string, targets []string) error {
	args := []string{"plan", "-input=false", "-out=" + planFile}
	args = append(args, targetArgs(targets)...)
	_, err := r.run(ctx, r.dir, args...)

	return err
}

// Apply applies the plan in planFile, or plans and applies in one step when
// planFile is empty.
func (r *Runner) Apply(ctx context.Context, planFile string, targets []string) error {
	args := []string{"apply", "-input=false", "-auto-approve"}
	if planFile != "" {
		args = append(args, planFile)
	} else {
		args = append(args, targetArgs(targets)...)
	}
	_, err := r.run(ctx, r.dir, args...)

	return err
}

// Destroy destroys the given resource targets. Targets must be non-empty:
// an unscoped destroy would tear down resources this coordinator never
// created.
func (r *Runner) Destroy(ctx context.Context, targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("refusing unscoped destroy in %s", r.dir)
	}

	args := []string{"destroy", "-input=false", "-auto-approve"}
	args = append(args, targetArgs(targets)...)
	_, err := r.run(ctx, r.dir, args...)

	return err
}

// Output returns the configuration's output values as raw JSON, keyed by
// output name.
func (r *Runner) Output(ctx context.Context) (map[string]json.RawMessage, error) {
	out, err := r.run(ctx, r.dir, "output", "-json")
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]json.RawMessage)
	if out == "" {
		return outputs, nil
	}
	if err := json.Unmarshal([]byte(out), &outputs); err != nil {
		return nil, fmt.Errorf("parse provisioning outputs: %w", err)
	}

	return outputs, nil
}

func targetArgs(targets []string) []string {
	args := make([]string, 0, len(targets))
	for _, t := range targets {
		args = append(args, "-target="+t)
	}

	return args
}
