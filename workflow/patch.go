package workflow

import (
	"context"
	"fmt"

	"github.com/shipstream/shipstream/gitops"
	"github.com/shipstream/shipstream/hosting"
	"github.com/shipstream/shipstream/pkg/logger"
	"github.com/shipstream/shipstream/txn"
)

// PatchWorkflow ships a working-tree change as a reviewed pull request:
// create a branch, commit, push, open the pull request and label it — all
// inside one transaction, so a failure at any step unwinds the earlier ones.
type PatchWorkflow struct {
	git      gitops.Service
	hosting  hosting.Service
	repo     string
	registry *txn.Registry
	lggr     logger.Logger
}

// NewPatchWorkflow creates a patch workflow over the given boundaries.
// repo is the hosting repository in owner/name form.
func NewPatchWorkflow(git gitops.Service, host hosting.Service, repo string, registry *txn.Registry, lggr logger.Logger) *PatchWorkflow {
	return &PatchWorkflow{git: git, hosting: host, repo: repo, registry: registry, lggr: lggr}
}

// Run builds, prepares and executes the patch transaction. The transaction
// is returned in all cases so the caller can inspect the audit trail and
// final state; the error reports why it did not commit.
func (w *PatchWorkflow) Run(ctx context.Context, spec PatchSpec, opts ...txn.Option) (*txn.Transaction, error) {
	spec = spec.defaulted()

	t := w.registry.Create(fmt.Sprintf("patch: %s", spec.Title), opts...)

	prOp, createdPR := hosting.CreatePullRequestOperation(w.hosting, w.repo, hosting.CreatePullRequestInput{
		Title: spec.Title,
		Body:  spec.Body,
		Head:  spec.Branch,
		Base:  spec.BaseBranch,
	}, gitops.OpPushBranch)

	ops := []*txn.Operation{
		gitops.CreateBranchOperation(w.git, spec.Branch),
		gitops.CommitOperation(w.git, spec.CommitMessage, gitops.OpCreateBranch),
		gitops.PushBranchOperation(w.git, spec.Remote, spec.Branch, gitops.OpCommitChanges),
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

	if pr := createdPR(); pr != nil {
		w.lggr.Infow("Patch shipped", "workflow", "patch", "pullRequest", pr.Number, "url", pr.URL)
	}

	return t, nil
}
