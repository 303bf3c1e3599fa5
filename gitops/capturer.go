package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/shipstream/shipstream/pkg/logger"
	"github.com/shipstream/shipstream/txn"
)

// Capturer captures working-tree state around transaction operations:
// the active branch and head commit, a summary of uncommitted changes, and
// the allow-listed environment variables. It is the VCS-aware extension of
// txn.EnvCapturer.
type Capturer struct {
	git  Service
	base txn.EnvCapturer
	lggr logger.Logger
}

var _ txn.Capturer = (*Capturer)(nil)

// NewCapturer creates a capturer for the working tree at dir. allowList
// bounds the environment variables recorded in snapshots.
func NewCapturer(git Service, dir string, allowList []string, lggr logger.Logger) *Capturer {
	return &Capturer{
		git:  git,
		base: txn.EnvCapturer{Dir: dir, AllowList: allowList},
		lggr: lggr,
	}
}

// Capture implements txn.Capturer.
func (c *Capturer) Capture(ctx context.Context) (*txn.Snapshot, error) {
	snap, err := c.base.Capture(ctx)
	if err != nil {
		return nil, err
	}

	branch, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture current branch: %w", err)
	}
	head, err := c.git.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture head: %w", err)
	}
	status, err := c.git.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture working-tree status: %w", err)
	}

	snap.CurrentReference = fmt.Sprintf("%s@%s", branch, shortCommit(head))
	snap.PendingChanges = summarizeStatus(status)

	return snap, nil
}

func shortCommit(head string) string {
	if len(head) > 12 {
		return head[:12]
	}

	return head
}

// summarizeStatus reduces porcelain output to a count; the full diff has no
// place in an audit trail.
func summarizeStatus(status string) string {
	if strings.TrimSpace(status) == "" {
		return "clean"
	}
	n := len(strings.Split(strings.TrimSpace(status), "\n"))

	return fmt.Sprintf("%d uncommitted paths", n)
}
