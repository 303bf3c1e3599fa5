// Package gitops is the version-control boundary: a thin exec-based git
// wrapper plus builders that package git side effects as transaction
// operations with their natural inverses (delete the created branch, reset
// to the prior position). Inverses tolerate being called when the forward
// action never completed.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shipstream/shipstream/pkg/logger"
)

// Service is the git surface the operation builders and the snapshot
// capturer consume. Runner is the production implementation; tests supply
// fakes.
type Service interface {
	CurrentBranch(ctx context.Context) (string, error)
	Head(ctx context.Context) (string, error)
	Status(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, name string) error
	SwitchBranch(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string) error
	BranchExists(ctx context.Context, name string) (bool, error)
	Commit(ctx context.Context, message string) error
	ResetHard(ctx context.Context, ref string) error
	Push(ctx context.Context, remote, branch string) error
	DeleteRemoteBranch(ctx context.Context, remote, branch string) error
	CreateTag(ctx context.Context, name, message string) error
	DeleteTag(ctx context.Context, name string) error
	PushTag(ctx context.Context, remote, name string) error
	DeleteRemoteTag(ctx context.Context, remote, name string) error
	TagExists(ctx context.Context, name string) (bool, error)
	LatestTag(ctx context.Context) (string, error)
}

// runFunc invokes git in dir with args and returns trimmed stdout.
type runFunc func(ctx context.Context, dir string, args ...string) (string, error)

// Runner invokes the git binary against one working tree.
type Runner struct {
	dir  string
	lggr logger.Logger
	run  runFunc
}

var _ Service = (*Runner)(nil)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunFunc replaces the exec-backed invoker. Intended for tests.
func WithRunFunc(run runFunc) RunnerOption {
	return func(r *Runner) { r.run = run }
}

// NewRunner creates a Runner for the working tree at dir. The git binary is
// resolved at construction so a missing tool fails fast instead of failing
// the first operation of a transaction.
func NewRunner(dir string, lggr logger.Logger, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{dir: dir, lggr: lggr}
	for _, opt := range opts {
		opt(r)
	}
	if r.run == nil {
		if _, err := exec.LookPath("git"); err != nil {
			return nil, fmt.Errorf("git binary not found: %w", err)
		}
		r.run = r.execGit
	}

	return r, nil
}

// Dir returns the working tree the runner operates on.
func (r *Runner) Dir() string { return r.dir }

func (r *Runner) execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.lggr.Debugw("Invoking git", "dir", dir, "args", args)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// CurrentBranch returns the active branch name.
func (r *Runner) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, r.dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// Head returns the commit id HEAD points at.
func (r *Runner) Head(ctx context.Context) (string, error) {
	return r.run(ctx, r.dir, "rev-parse", "HEAD")
}

// Status returns the porcelain working-tree status.
func (r *Runner) Status(ctx context.Context) (string, error) {
	return r.run(ctx, r.dir, "status", "--porcelain")
}

// CreateBranch creates a local branch at HEAD.
func (r *Runner) CreateBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, r.dir, "branch", name)

	return err
}

// SwitchBranch switches the working tree to the named branch.
func (r *Runner) SwitchBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, r.dir, "switch", name)

	return err
}

// DeleteBranch force-deletes a local branch.
func (r *Runner) DeleteBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, r.dir, "branch", "-D", name)

	return err
}

// BranchExists reports whether a local branch exists.
func (r *Runner) BranchExists(ctx context.Context, name string) (bool, error) {
	if _, err := r.run(ctx, r.dir, "rev-parse", "--verify", "--quiet", "refs/heads/"+name); err != nil {
		return false, nil
	}

	return true, nil
}

// Commit stages everything and commits with the given message.
func (r *Runner) Commit(ctx context.Context, message string) error {
	if _, err := r.run(ctx, r.dir, "add", "-A"); err != nil {
		return err
	}
	_, err := r.run(ctx, r.dir, "commit", "-m", message)

	return err
}

// ResetHard moves the working tree and HEAD to ref, discarding local
// changes.
func (r *Runner) ResetHard(ctx context.Context, ref string) error {
	_, err := r.run(ctx, r.dir, "reset", "--hard", ref)

	return err
}

// Push pushes a branch to the remote.
func (r *Runner) Push(ctx context.Context, remote, branch string) error {
	_, err := r.run(ctx, r.dir, "push", "--set-upstream", remote, branch)

	return err
}

// DeleteRemoteBranch deletes a branch on the remote.
func (r *Runner) DeleteRemoteBranch(ctx context.Context, remote, branch string) error {
	_, err := r.run(ctx, r.dir, "push", remote, "--delete", branch)

	return err
}

// CreateTag creates an annotated tag when a message is supplied, otherwise a
// lightweight one.
func (r *Runner) CreateTag(ctx context.Context, name, message string) error {
	args := []string{"tag", name}
	if message != "" {
		args = []string{"tag", "-a", name, "-m", message}
	}
	_, err := r.run(ctx, r.dir, args...)

	return err
}

// DeleteTag deletes a local tag.
func (r *Runner) DeleteTag(ctx context.Context, name string) error {
	_, err := r.run(ctx, r.dir, "tag", "-d", name)

	return err
}

// PushTag pushes a tag to the remote.
func (r *Runner) PushTag(ctx context.Context, remote, name string) error {
	_, err := r.run(ctx, r.dir, "push", remote, "refs/tags/"+name)

	return err
}

// DeleteRemoteTag deletes a tag on the remote.
func (r *Runner) DeleteRemoteTag(ctx context.Context, remote, name string) error {
	_, err := r.run(ctx, r.dir, "push", remote, ":refs/tags/"+name)

	return err
}

// TagExists reports whether a local tag exists.
func (r *Runner) TagExists(ctx context.Context, name string) (bool, error) {
	if _, err := r.run(ctx, r.dir, "rev-parse", "--verify", "--quiet", "refs/tags/"+name); err != nil {
		return false, nil
	}

	return true, nil
}

// LatestTag returns the most recent reachable tag, or "" when the
// repository has no tags yet.
func (r *Runner) LatestTag(ctx context.Context) (string, error) {
	tag, err := r.run(ctx, r.dir, "describe", "--tags", "--abbrev=0")
	if err != nil {
		r.lggr.Debugw("No tags found", "dir", r.dir, "error", err)

		return "", nil
	}

	return tag, nil
}
