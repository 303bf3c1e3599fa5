package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/shipstream/shipstream/txn"
)

// Operation ids used by the builders in this package. Workflows reference
// these when declaring dependencies between steps.
const (
	OpCreateBranch  = "create-branch"
	OpCommitChanges = "commit-changes"
	OpPushBranch    = "push-branch"
	OpCreateTag     = "create-tag"
	OpPushTag       = "push-tag"
)

// createBranch creates and switches to a working branch. The branch to
// return to on rollback is resolved when the action runs, not at build time,
// so the command object carries its own state instead of closing over the
// caller's.
type createBranch struct {
	git    Service
	branch string
	prior  string
}

func (c *createBranch) action(ctx context.Context) error {
	prior, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	c.prior = prior

	if err := c.git.CreateBranch(ctx, c.branch); err != nil {
		return err
	}

	return c.git.SwitchBranch(ctx, c.branch)
}

func (c *createBranch) inverse(ctx context.Context) error {
	exists, err := c.git.BranchExists(ctx, c.branch)
	if err != nil {
		return err
	}
	if !exists {
		// Forward action never got as far as creating the branch.
		return nil
	}

	if c.prior != "" {
		if err := c.git.SwitchBranch(ctx, c.prior); err != nil {
			return err
		}
	}

	return c.git.DeleteBranch(ctx, c.branch)
}

func (c *createBranch) check(ctx context.Context) (bool, error) {
	return c.git.BranchExists(ctx, c.branch)
}

// CreateBranchOperation returns an operation that creates and switches to
// branch; its inverse switches back and deletes the branch.
func CreateBranchOperation(git Service, branch string, deps ...string) *txn.Operation {
	cmd := &createBranch{git: git, branch: branch}

	return txn.NewOperation(OpCreateBranch, txn.KindVersionControl,
		fmt.Sprintf("create and switch to branch %q", branch),
		cmd.action, cmd.inverse,
		txn.WithPostCondition(cmd.check),
		txn.WithDependencies(deps...),
	)
}

// commitChanges stages and commits the working tree. Rollback resets to the
// head recorded just before the commit.
type commitChanges struct {
	git       Service
	message   string
	priorHead string
}

func (c *commitChanges) action(ctx context.Context) error {
	head, err := c.git.Head(ctx)
	if err != nil {
		return err
	}
	c.priorHead = head

	return c.git.Commit(ctx, c.message)
}

func (c *commitChanges) inverse(ctx context.Context) error {
	if c.priorHead == "" {
		return nil
	}

	return c.git.ResetHard(ctx, c.priorHead)
}

func (c *commitChanges) check(ctx context.Context) (bool, error) {
	head, err := c.git.Head(ctx)
	if err != nil {
		return false, err
	}

	return head != c.priorHead, nil
}

// CommitOperation returns an operation that commits all local changes; its
// inverse hard-resets to the pre-commit head.
func CommitOperation(git Service, message string, deps ...string) *txn.Operation {
	cmd := &commitChanges{git: git, message: message}

	return txn.NewOperation(OpCommitChanges, txn.KindVersionControl,
		fmt.Sprintf("commit changes: %s", message),
		cmd.action, cmd.inverse,
		txn.WithPostCondition(cmd.check),
		txn.WithDependencies(deps...),
	)
}

// PushBranchOperation returns an operation that pushes branch to remote; its
// inverse deletes the remote branch, tolerating a remote where the push
// never landed.
func PushBranchOperation(git Service, remote, branch string, deps ...string) *txn.Operation {
	return txn.NewOperation(OpPushBranch, txn.KindNetwork,
		fmt.Sprintf("push branch %q to %q", branch, remote),
		func(ctx context.Context) error {
			return git.Push(ctx, remote, branch)
		},
		func(ctx context.Context) error {
			return tolerateMissingRef(git.DeleteRemoteBranch(ctx, remote, branch))
		},
		txn.WithDependencies(deps...),
	)
}

// createTag creates a tag locally; the inverse deletes it if it exists.
type createTag struct {
	git     Service
	name    string
	message string
}

func (c *createTag) inverse(ctx context.Context) error {
	exists, err := c.git.TagExists(ctx, c.name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	return c.git.DeleteTag(ctx, c.name)
}

// CreateTagOperation returns an operation that creates a tag; its inverse
// deletes it.
func CreateTagOperation(git Service, name, message string, deps ...string) *txn.Operation {
	cmd := &createTag{git: git, name: name, message: message}

	return txn.NewOperation(OpCreateTag, txn.KindVersionControl,
		fmt.Sprintf("create tag %q", name),
		func(ctx context.Context) error {
			return git.CreateTag(ctx, name, message)
		},
		cmd.inverse,
		txn.WithPostCondition(func(ctx context.Context) (bool, error) {
			return git.TagExists(ctx, name)
		}),
		txn.WithDependencies(deps...),
	)
}

// PushTagOperation returns an operation that pushes a tag to remote; its
// inverse deletes the remote tag.
func PushTagOperation(git Service, remote, name string, deps ...string) *txn.Operation {
	return txn.NewOperation(OpPushTag, txn.KindNetwork,
		fmt.Sprintf("push tag %q to %q", name, remote),
		func(ctx context.Context) error {
			return git.PushTag(ctx, remote, name)
		},
		func(ctx context.Context) error {
			return tolerateMissingRef(git.DeleteRemoteTag(ctx, remote, name))
		},
		txn.WithDependencies(deps...),
	)
}

// tolerateMissingRef treats "the ref was never there" as a successful undo,
// which is exactly the no-op starting state inverses must tolerate.
func tolerateMissingRef(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "remote ref does not exist") || strings.Contains(msg, "unable to delete") {
		return nil
	}

	return err
}
