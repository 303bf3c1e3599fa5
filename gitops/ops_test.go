package gitops

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstream/shipstream/pkg/logger"
	"github.com/shipstream/shipstream/txn"
)

// fakeGit is an in-memory Service used to exercise the operation builders.
type fakeGit struct {
	branch   string
	head     string
	status   string
	branches map[string]bool
	tags     map[string]bool
	remote   map[string]bool
	calls    []string
	failOn   map[string]error
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		branch:   "main",
		head:     "aaaa000000000000",
		branches: map[string]bool{"main": true},
		tags:     map[string]bool{},
		remote:   map[string]bool{},
		failOn:   map[string]error{},
	}
}

func (f *fakeGit) call(name string, args ...string) error {
	line := name
	for _, a := range args {
		line += " " + a
	}
	f.calls = append(f.calls, line)

	return f.failOn[name]
}

func (f *fakeGit) CurrentBranch(context.Context) (string, error) {
	if err := f.call("CurrentBranch"); err != nil {
		return "", err
	}

	return f.branch, nil
}

func (f *fakeGit) Head(context.Context) (string, error) {
	if err := f.call("Head"); err != nil {
		return "", err
	}

	return f.head, nil
}

func (f *fakeGit) Status(context.Context) (string, error) {
	if err := f.call("Status"); err != nil {
		return "", err
	}

	return f.status, nil
}

func (f *fakeGit) CreateBranch(_ context.Context, name string) error {
	if err := f.call("CreateBranch", name); err != nil {
		return err
	}
	f.branches[name] = true

	return nil
}

func (f *fakeGit) SwitchBranch(_ context.Context, name string) error {
	if err := f.call("SwitchBranch", name); err != nil {
		return err
	}
	f.branch = name

	return nil
}

func (f *fakeGit) DeleteBranch(_ context.Context, name string) error {
	if err := f.call("DeleteBranch", name); err != nil {
		return err
	}
	delete(f.branches, name)

	return nil
}

func (f *fakeGit) BranchExists(_ context.Context, name string) (bool, error) {
	return f.branches[name], nil
}

func (f *fakeGit) Commit(_ context.Context, message string) error {
	if err := f.call("Commit", message); err != nil {
		return err
	}
	f.head = "bbbb111111111111"

	return nil
}

func (f *fakeGit) ResetHard(_ context.Context, ref string) error {
	if err := f.call("ResetHard", ref); err != nil {
		return err
	}
	f.head = ref

	return nil
}

func (f *fakeGit) Push(_ context.Context, remote, branch string) error {
	if err := f.call("Push", remote, branch); err != nil {
		return err
	}
	f.remote[branch] = true

	return nil
}

func (f *fakeGit) DeleteRemoteBranch(_ context.Context, remote, branch string) error {
	if err := f.call("DeleteRemoteBranch", remote, branch); err != nil {
		return err
	}
	if !f.remote[branch] {
		return errors.New("remote ref does not exist")
	}
	delete(f.remote, branch)

	return nil
}

func (f *fakeGit) CreateTag(_ context.Context, name, _ string) error {
	if err := f.call("CreateTag", name); err != nil {
		return err
	}
	f.tags[name] = true

	return nil
}

func (f *fakeGit) DeleteTag(_ context.Context, name string) error {
	if err := f.call("DeleteTag", name); err != nil {
		return err
	}
	delete(f.tags, name)

	return nil
}

func (f *fakeGit) PushTag(_ context.Context, remote, name string) error {
	if err := f.call("PushTag", remote, name); err != nil {
		return err
	}
	f.remote["tag:"+name] = true

	return nil
}

func (f *fakeGit) DeleteRemoteTag(_ context.Context, remote, name string) error {
	if err := f.call("DeleteRemoteTag", remote, name); err != nil {
		return err
	}
	if !f.remote["tag:"+name] {
		return errors.New("remote ref does not exist")
	}
	delete(f.remote, "tag:"+name)

	return nil
}

func (f *fakeGit) TagExists(_ context.Context, name string) (bool, error) {
	return f.tags[name], nil
}

func (f *fakeGit) LatestTag(context.Context) (string, error) {
	if err := f.call("LatestTag"); err != nil {
		return "", err
	}

	return "v1.2.3", nil
}

func Test_CreateBranchOperation(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	op := CreateBranchOperation(git, "feature/x")
	ctx := context.Background()

	require.NoError(t, op.Execute(ctx, nil, logger.Test(t)))
	assert.True(t, git.branches["feature/x"])
	assert.Equal(t, "feature/x", git.branch)

	ok, err := git.BranchExists(ctx, "feature/x")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, op.Validate(ctx))

	require.NoError(t, op.Rollback(ctx, logger.Test(t)))
	assert.False(t, git.branches["feature/x"])
	assert.Equal(t, "main", git.branch, "rollback switches back to the prior branch")
}

func Test_CreateBranchOperation_InverseWithoutAction(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	op := CreateBranchOperation(git, "feature/x")

	// The forward action never ran; the inverse must be a clean no-op.
	require.NoError(t, op.Rollback(context.Background(), logger.Test(t)))
	assert.NotContains(t, git.calls, "DeleteBranch feature/x")
}

func Test_CommitOperation(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	op := CommitOperation(git, "apply patch", OpCreateBranch)
	ctx := context.Background()

	assert.Equal(t, []string{OpCreateBranch}, op.Dependencies())

	require.NoError(t, op.Execute(ctx, nil, logger.Test(t)))
	assert.Equal(t, "bbbb111111111111", git.head)
	require.NoError(t, op.Validate(ctx))

	require.NoError(t, op.Rollback(ctx, logger.Test(t)))
	assert.Equal(t, "aaaa000000000000", git.head, "rollback resets to the pre-commit head")
}

func Test_CommitOperation_PostConditionDetectsNoCommit(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	op := CommitOperation(git, "apply patch")
	ctx := context.Background()

	require.NoError(t, op.Execute(ctx, nil, logger.Test(t)))
	// Simulate cross-operation interference: something moved HEAD back.
	git.head = "aaaa000000000000"

	require.ErrorIs(t, op.Validate(ctx), txn.ErrPostConditionFailed)
}

func Test_PushBranchOperation(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	op := PushBranchOperation(git, "origin", "feature/x")
	ctx := context.Background()

	require.NoError(t, op.Execute(ctx, nil, logger.Test(t)))
	assert.True(t, git.remote["feature/x"])

	require.NoError(t, op.Rollback(ctx, logger.Test(t)))
	assert.False(t, git.remote["feature/x"])
}

func Test_PushBranchOperation_InverseToleratesMissingRemoteRef(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	op := PushBranchOperation(git, "origin", "feature/x")

	// Push never happened; deleting the remote ref fails with "does not
	// exist", which the inverse treats as success.
	require.NoError(t, op.Rollback(context.Background(), logger.Test(t)))
}

func Test_TagOperations(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	ctx := context.Background()

	tagOp := CreateTagOperation(git, "v1.3.0", "release v1.3.0")
	require.NoError(t, tagOp.Execute(ctx, nil, logger.Test(t)))
	require.NoError(t, tagOp.Validate(ctx))
	assert.True(t, git.tags["v1.3.0"])

	pushOp := PushTagOperation(git, "origin", "v1.3.0", OpCreateTag)
	require.NoError(t, pushOp.Execute(ctx, nil, logger.Test(t)))
	assert.True(t, git.remote["tag:v1.3.0"])

	require.NoError(t, pushOp.Rollback(ctx, logger.Test(t)))
	require.NoError(t, tagOp.Rollback(ctx, logger.Test(t)))
	assert.False(t, git.tags["v1.3.0"])
	assert.False(t, git.remote["tag:v1.3.0"])
}

func Test_CreateTagOperation_InverseWithoutAction(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	op := CreateTagOperation(git, "v9.9.9", "")

	require.NoError(t, op.Rollback(context.Background(), logger.Test(t)))
	assert.NotContains(t, git.calls, "DeleteTag v9.9.9")
}

func Test_tolerateMissingRef(t *testing.T) {
	t.Parallel()

	require.NoError(t, tolerateMissingRef(nil))
	require.NoError(t, tolerateMissingRef(errors.New("error: unable to delete 'x': remote ref does not exist")))
	require.Error(t, tolerateMissingRef(errors.New("permission denied")))
}

func Test_Capturer(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	git.status = " M go.mod\n?? notes.md"
	capturer := NewCapturer(git, "/work/repo", nil, logger.Test(t))

	snap, err := capturer.Capture(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "/work/repo", snap.WorkingDirectory)
	assert.Equal(t, "main@aaaa00000000", snap.CurrentReference)
	assert.Equal(t, "2 uncommitted paths", snap.PendingChanges)
}

func Test_Capturer_CleanTree(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	capturer := NewCapturer(git, "/work/repo", nil, logger.Test(t))

	snap, err := capturer.Capture(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "clean", snap.PendingChanges)
}

func Test_Capturer_GitUnavailable(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	git.failOn["CurrentBranch"] = fmt.Errorf("repository unreachable")
	capturer := NewCapturer(git, "/work/repo", nil, logger.Test(t))

	_, err := capturer.Capture(context.Background())

	require.ErrorContains(t, err, "capture current branch")
}
