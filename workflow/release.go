package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/shipstream/shipstream/gitops"
	"github.com/shipstream/shipstream/hosting"
	"github.com/shipstream/shipstream/pkg/logger"
	"github.com/shipstream/shipstream/txn"
)

// OpWriteNotes is the id of the release-notes file operation.
const OpWriteNotes = "write-release-notes"

// ReleaseWorkflow cuts a release: bump the latest tag, write release notes,
// commit and tag on a release branch, push both and open a pull request.
type ReleaseWorkflow struct {
	git      gitops.Service
	hosting  hosting.Service
	repo     string
	registry *txn.Registry
	lggr     logger.Logger
}

// NewReleaseWorkflow creates a release workflow over the given boundaries.
func NewReleaseWorkflow(git gitops.Service, host hosting.Service, repo string, registry *txn.Registry, lggr logger.Logger) *ReleaseWorkflow {
	return &ReleaseWorkflow{git: git, hosting: host, repo: repo, registry: registry, lggr: lggr}
}

// NextVersion computes the release version: the latest reachable tag bumped
// by the requested component, or 0.1.0 when the repository has no tags yet.
func (w *ReleaseWorkflow) NextVersion(ctx context.Context, bump string) (*semver.Version, error) {
	latest, err := w.git.LatestTag(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve latest tag: %w", err)
	}
	if latest == "" {
		return semver.New(0, 1, 0, "", ""), nil
	}

	current, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return nil, fmt.Errorf("latest tag %q is not a version: %w", latest, err)
	}

	var next semver.Version
	switch bump {
	case "major":
		next = current.IncMajor()
	case "minor":
		next = current.IncMinor()
	case "patch":
		next = current.IncPatch()
	default:
		return nil, fmt.Errorf("unknown bump %q", bump)
	}

	return &next, nil
}

// Run builds, prepares and executes the release transaction. The returned
// transaction is valid even on error, for audit-trail inspection.
func (w *ReleaseWorkflow) Run(ctx context.Context, spec ReleaseSpec, opts ...txn.Option) (*txn.Transaction, error) {
	spec = spec.defaulted()

	version, err := w.NextVersion(ctx, spec.Bump)
	if err != nil {
		return nil, err
	}
	tag := "v" + version.String()
	branch := "release/" + tag

	t := w.registry.Create(fmt.Sprintf("release: %s", tag), opts...)

	prOp, createdPR := hosting.CreatePullRequestOperation(w.hosting, w.repo, hosting.CreatePullRequestInput{
		Title: fmt.Sprintf("Release %s", tag),
		Body:  spec.Notes,
		Head:  branch,
		Base:  spec.BaseBranch,
	}, gitops.OpPushBranch)

	notes := spec.Notes
	if notes == "" {
		notes = fmt.Sprintf("Release %s", tag)
	}

	ops := []*txn.Operation{
		gitops.CreateBranchOperation(w.git, branch),
		writeNotesOperation(spec.NotesFile, notes, gitops.OpCreateBranch),
		gitops.CommitOperation(w.git, fmt.Sprintf("Release %s", tag), OpWriteNotes),
		gitops.CreateTagOperation(w.git, tag, notes, gitops.OpCommitChanges),
		gitops.PushBranchOperation(w.git, spec.Remote, branch, gitops.OpCreateTag),
		gitops.PushTagOperation(w.git, spec.Remote, tag, gitops.OpPushBranch),
		prOp,
	}
	if len(spec.Labels) > 0 {
		ops = append(ops, hosting.AddLabelsOperation(w.hosting, w.repo, func() int {
			if pr := createdPR(); pr != nil {
				return pr.Number
			}

			return 0
		}, spec.Labels, hosting.OpCreatePullRequest))
	}

	for _, op := range ops {
		if err := t.AddOperation(op); err != nil {
			return t, err
		}
	}

	if err := t.Prepare(ctx); err != nil {
		return t, err
	}
	if err := t.Execute(ctx); err != nil {
		return t, err
	}

	w.lggr.Infow("Release cut", "workflow", "release", "version", tag)

	return t, nil
}

// writeNotes writes the release-notes file. The inverse restores the prior
// content, or removes the file when it did not exist before.
type writeNotes struct {
	path    string
	content string

	existed bool
	prior   []byte
	wrote   bool
}

func (n *writeNotes) action(context.Context) error {
	prior, err := os.ReadFile(n.path)
	switch {
	case err == nil:
		n.existed = true
		n.prior = prior
	case !os.IsNotExist(err):
		return fmt.Errorf("read existing notes: %w", err)
	}

	if err := os.WriteFile(n.path, []byte(n.content), 0o644); err != nil {
		return err
	}
	n.wrote = true

	return nil
}

func (n *writeNotes) inverse(context.Context) error {
	if !n.wrote {
		return nil
	}
	if n.existed {
		return os.WriteFile(n.path, n.prior, 0o644)
	}
	if err := os.Remove(n.path); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (n *writeNotes) check(context.Context) (bool, error) {
	data, err := os.ReadFile(n.path)
	if err != nil {
		return false, nil
	}

	return string(data) == n.content, nil
}

func writeNotesOperation(path, content string, deps ...string) *txn.Operation {
	cmd := &writeNotes{path: path, content: content}

	return txn.NewOperation(OpWriteNotes, txn.KindFileSystem,
		fmt.Sprintf("write release notes to %s", path),
		cmd.action, cmd.inverse,
		txn.WithPostCondition(cmd.check),
		txn.WithDependencies(deps...),
	)
}
