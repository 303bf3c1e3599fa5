package hosting

import (
	"context"
	"fmt"

	"github.com/shipstream/shipstream/txn"
)

// Operation ids used by the builders in this package.
const (
	OpCreatePullRequest = "create-pull-request"
	OpCreateIssue       = "create-issue"
	OpAddLabels         = "add-labels"
)

// rollbackComment explains why a resource created by a transaction was
// closed again.
const rollbackComment = "Closed automatically: the workflow transaction that created this was rolled back."

// createPullRequest opens a pull request and remembers its number so the
// best-effort inverse can close it with an explanatory comment.
type createPullRequest struct {
	svc     Service
	repo    string
	input   CreatePullRequestInput
	created *PullRequest
}

func (c *createPullRequest) action(ctx context.Context) error {
	pr, err := c.svc.CreatePullRequest(ctx, c.repo, c.input)
	if err != nil {
		return err
	}
	c.created = pr

	return nil
}

func (c *createPullRequest) inverse(ctx context.Context) error {
	if c.created == nil {
		// Nothing was created; nothing to undo.
		return nil
	}

	return c.svc.ClosePullRequest(ctx, c.repo, c.created.Number, rollbackComment)
}

func (c *createPullRequest) check(ctx context.Context) (bool, error) {
	if c.created == nil {
		return false, nil
	}
	pr, err := c.svc.GetPullRequest(ctx, c.repo, c.created.Number)
	if err != nil {
		return false, err
	}

	return pr.State == "open", nil
}

// Created returns the pull request the operation opened, or nil.
func (c *createPullRequest) Created() *PullRequest { return c.created }

// CreatePullRequestOperation returns an operation that opens a pull request.
// The inverse cannot un-create it; it closes the pull request with an
// explanatory comment, which is the strongest rollback the hosting API
// supports.
func CreatePullRequestOperation(svc Service, repo string, input CreatePullRequestInput, deps ...string) (*txn.Operation, func() *PullRequest) {
	cmd := &createPullRequest{svc: svc, repo: repo, input: input}

	op := txn.NewOperation(OpCreatePullRequest, txn.KindRemoteAPI,
		fmt.Sprintf("open pull request %q (%s -> %s)", input.Title, input.Head, input.Base),
		cmd.action, cmd.inverse,
		txn.WithPostCondition(cmd.check),
		txn.WithDependencies(deps...),
	)

	return op, cmd.Created
}

// createIssue opens an issue; the inverse closes it with a comment.
type createIssue struct {
	svc     Service
	repo    string
	input   CreateIssueInput
	created *Issue
}

func (c *createIssue) action(ctx context.Context) error {
	issue, err := c.svc.CreateIssue(ctx, c.repo, c.input)
	if err != nil {
		return err
	}
	c.created = issue

	return nil
}

func (c *createIssue) inverse(ctx context.Context) error {
	if c.created == nil {
		return nil
	}

	return c.svc.CloseIssue(ctx, c.repo, c.created.Number, rollbackComment)
}

// CreateIssueOperation returns an operation that opens an issue; the
// best-effort inverse closes it with an explanatory comment.
func CreateIssueOperation(svc Service, repo string, input CreateIssueInput, deps ...string) *txn.Operation {
	cmd := &createIssue{svc: svc, repo: repo, input: input}

	return txn.NewOperation(OpCreateIssue, txn.KindRemoteAPI,
		fmt.Sprintf("open issue %q", input.Title),
		cmd.action, cmd.inverse,
		txn.WithDependencies(deps...),
	)
}

// addLabels labels an issue or pull request; the inverse removes exactly
// the labels this operation added.
type addLabels struct {
	svc     Service
	repo    string
	number  func() int
	labels  []string
	applied bool
}

func (a *addLabels) action(ctx context.Context) error {
	if err := a.svc.AddLabels(ctx, a.repo, a.number(), a.labels); err != nil {
		return err
	}
	a.applied = true

	return nil
}

func (a *addLabels) inverse(ctx context.Context) error {
	if !a.applied {
		return nil
	}

	for _, label := range a.labels {
		if err := a.svc.RemoveLabel(ctx, a.repo, a.number(), label); err != nil {
			return err
		}
	}

	return nil
}

// AddLabelsOperation returns an operation that labels an issue or pull
// request. The target number is resolved when the action runs, so the
// operation can label a pull request created earlier in the same
// transaction.
func AddLabelsOperation(svc Service, repo string, number func() int, labels []string, deps ...string) *txn.Operation {
	cmd := &addLabels{svc: svc, repo: repo, number: number, labels: labels}

	return txn.NewOperation(OpAddLabels, txn.KindRemoteAPI,
		fmt.Sprintf("add labels %v", labels),
		cmd.action, cmd.inverse,
		txn.WithDependencies(deps...),
	)
}
