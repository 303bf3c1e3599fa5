package workflow

// Shared in-memory fakes for the boundary services. Each workflow test
// drives a real transaction end to end against these.

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shipstream/shipstream/hosting"
)

type fakeGit struct {
	branch   string
	head     int
	branches map[string]bool
	remote   map[string]bool
	tags     map[string]bool
	latest   string
	failOn   map[string]error
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		branch:   "main",
		branches: map[string]bool{"main": true},
		remote:   make(map[string]bool),
		tags:     make(map[string]bool),
		failOn:   make(map[string]error),
	}
}

func (f *fakeGit) fail(method string) error { return f.failOn[method] }

func (f *fakeGit) CurrentBranch(context.Context) (string, error) { return f.branch, nil }

func (f *fakeGit) Head(context.Context) (string, error) {
	return fmt.Sprintf("commit-%d", f.head), nil
}

func (f *fakeGit) Status(context.Context) (string, error) { return "", nil }

func (f *fakeGit) CreateBranch(_ context.Context, name string) error {
	if err := f.fail("CreateBranch"); err != nil {
		return err
	}
	f.branches[name] = true

	return nil
}

func (f *fakeGit) SwitchBranch(_ context.Context, name string) error {
	if !f.branches[name] {
		return fmt.Errorf("branch %q does not exist", name)
	}
	f.branch = name

	return nil
}

func (f *fakeGit) DeleteBranch(_ context.Context, name string) error {
	delete(f.branches, name)

	return nil
}

func (f *fakeGit) BranchExists(_ context.Context, name string) (bool, error) {
	return f.branches[name], nil
}

func (f *fakeGit) Commit(_ context.Context, _ string) error {
	if err := f.fail("Commit"); err != nil {
		return err
	}
	f.head++

	return nil
}

func (f *fakeGit) ResetHard(_ context.Context, ref string) error {
	var n int
	if _, err := fmt.Sscanf(ref, "commit-%d", &n); err != nil {
		return err
	}
	f.head = n

	return nil
}

func (f *fakeGit) Push(_ context.Context, _, branch string) error {
	if err := f.fail("Push"); err != nil {
		return err
	}
	f.remote[branch] = true

	return nil
}

func (f *fakeGit) DeleteRemoteBranch(_ context.Context, _, branch string) error {
	delete(f.remote, branch)

	return nil
}

func (f *fakeGit) CreateTag(_ context.Context, name, _ string) error {
	if err := f.fail("CreateTag"); err != nil {
		return err
	}
	f.tags[name] = true

	return nil
}

func (f *fakeGit) DeleteTag(_ context.Context, name string) error {
	delete(f.tags, name)

	return nil
}

func (f *fakeGit) PushTag(_ context.Context, _, name string) error {
	if err := f.fail("PushTag"); err != nil {
		return err
	}
	f.remote["tag:"+name] = true

	return nil
}

func (f *fakeGit) DeleteRemoteTag(_ context.Context, _, name string) error {
	delete(f.remote, "tag:"+name)

	return nil
}

func (f *fakeGit) TagExists(_ context.Context, name string) (bool, error) {
	return f.tags[name], nil
}

func (f *fakeGit) LatestTag(context.Context) (string, error) { return f.latest, nil }

type fakeHost struct {
	nextNumber int
	prs        map[int]*hosting.PullRequest
	issues     map[int]*hosting.Issue
	labels     map[int][]string
	comments   map[int][]string
	failOn     map[string]error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		nextNumber: 100,
		prs:        make(map[int]*hosting.PullRequest),
		issues:     make(map[int]*hosting.Issue),
		labels:     make(map[int][]string),
		comments:   make(map[int][]string),
		failOn:     make(map[string]error),
	}
}

func (f *fakeHost) fail(method string) error { return f.failOn[method] }

func (f *fakeHost) CreatePullRequest(_ context.Context, _ string, input hosting.CreatePullRequestInput) (*hosting.PullRequest, error) {
	if err := f.fail("CreatePullRequest"); err != nil {
		return nil, err
	}
	f.nextNumber++
	pr := &hosting.PullRequest{Number: f.nextNumber, Title: input.Title, State: "open"}
	f.prs[pr.Number] = pr

	return pr, nil
}

func (f *fakeHost) GetPullRequest(_ context.Context, _ string, number int) (*hosting.PullRequest, error) {
	pr, ok := f.prs[number]
	if !ok {
		return nil, fmt.Errorf("pull request %d not found", number)
	}

	return pr, nil
}

func (f *fakeHost) ClosePullRequest(_ context.Context, _ string, number int, comment string) error {
	pr, ok := f.prs[number]
	if !ok {
		return fmt.Errorf("pull request %d not found", number)
	}
	if comment != "" {
		f.comments[number] = append(f.comments[number], comment)
	}
	pr.State = "closed"

	return nil
}

func (f *fakeHost) MergePullRequest(_ context.Context, _ string, number int) error {
	pr, ok := f.prs[number]
	if !ok {
		return fmt.Errorf("pull request %d not found", number)
	}
	pr.State = "merged"

	return nil
}

func (f *fakeHost) CreateIssue(_ context.Context, _ string, input hosting.CreateIssueInput) (*hosting.Issue, error) {
	f.nextNumber++
	issue := &hosting.Issue{Number: f.nextNumber, Title: input.Title, State: "open"}
	f.issues[issue.Number] = issue

	return issue, nil
}

func (f *fakeHost) CloseIssue(_ context.Context, _ string, number int, comment string) error {
	issue, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue %d not found", number)
	}
	if comment != "" {
		f.comments[number] = append(f.comments[number], comment)
	}
	issue.State = "closed"

	return nil
}

func (f *fakeHost) CommentIssue(_ context.Context, _ string, number int, body string) error {
	f.comments[number] = append(f.comments[number], body)

	return nil
}

func (f *fakeHost) AddLabels(_ context.Context, _ string, number int, labels []string) error {
	if err := f.fail("AddLabels"); err != nil {
		return err
	}
	f.labels[number] = append(f.labels[number], labels...)

	return nil
}

func (f *fakeHost) RemoveLabel(_ context.Context, _ string, number int, label string) error {
	kept := f.labels[number][:0]
	for _, l := range f.labels[number] {
		if l != label {
			kept = append(kept, l)
		}
	}
	f.labels[number] = kept

	return nil
}

type fakeProvisioner struct {
	applyErr  error
	applied   int
	destroyed [][]string
}

func (f *fakeProvisioner) Plan(_ context.Context, planFile string, _ []string) error {
	return os.WriteFile(planFile, []byte("plan"), 0o600)
}

func (f *fakeProvisioner) Apply(_ context.Context, _ string, _ []string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied++

	return nil
}

func (f *fakeProvisioner) Destroy(_ context.Context, targets []string) error {
	f.destroyed = append(f.destroyed, targets)

	return nil
}

func (f *fakeProvisioner) Output(context.Context) (map[string]json.RawMessage, error) {
	return nil, nil
}
