package provision

import (
	"context"
	"fmt"
	"os"

	"github.com/shipstream/shipstream/pkg/logger"
	"github.com/shipstream/shipstream/txn"
)

// Operation ids used by the builders in this package.
const (
	OpPlan  = "provision-plan"
	OpApply = "provision-apply"
)

// planInfra writes an execution plan to a file. The plan file is an
// artifact on local disk, so the inverse simply removes it.
type planInfra struct {
	svc      Service
	planFile string
	targets  []string
	planned  bool
}

func (p *planInfra) action(ctx context.Context) error {
	if err := p.svc.Plan(ctx, p.planFile, p.targets); err != nil {
		return err
	}
	p.planned = true

	return nil
}

func (p *planInfra) inverse(context.Context) error {
	if err := os.Remove(p.planFile); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (p *planInfra) check(context.Context) (bool, error) {
	if _, err := os.Stat(p.planFile); err != nil {
		return false, nil
	}

	return true, nil
}

// PlanOperation returns an operation that writes an execution plan to
// planFile; its inverse removes the plan file.
func PlanOperation(svc Service, planFile string, targets []string, deps ...string) *txn.Operation {
	cmd := &planInfra{svc: svc, planFile: planFile, targets: targets}

	return txn.NewOperation(OpPlan, txn.KindProcessExecution,
		fmt.Sprintf("plan infrastructure changes to %s", planFile),
		cmd.action, cmd.inverse,
		txn.WithPostCondition(cmd.check),
		txn.WithDependencies(deps...),
	)
}

// applyInfra applies a plan. The inverse destroys the resources the apply
// targeted. Without explicit targets the inverse cannot scope a destroy to
// only what this transaction created, so it degrades to a logged no-op and
// the resources must be reclaimed out of band.
type applyInfra struct {
	svc      Service
	planFile string
	targets  []string
	lggr     logger.Logger
	applied  bool
}

func (a *applyInfra) action(ctx context.Context) error {
	if err := a.svc.Apply(ctx, a.planFile, a.targets); err != nil {
		return err
	}
	a.applied = true

	return nil
}

func (a *applyInfra) inverse(ctx context.Context) error {
	if !a.applied {
		return nil
	}
	if len(a.targets) == 0 {
		a.lggr.Warnw("Cannot scope infrastructure destroy without targets, resources must be reclaimed manually",
			"planFile", a.planFile)

		return nil
	}

	return a.svc.Destroy(ctx, a.targets)
}

// ApplyOperation returns an operation that applies the plan in planFile.
// Its inverse destroys the targeted resources; when no targets were given
// the rollback is degraded to a warning, since an unscoped destroy could
// tear down infrastructure the transaction never touched.
func ApplyOperation(svc Service, planFile string, targets []string, lggr logger.Logger, deps ...string) *txn.Operation {
	cmd := &applyInfra{svc: svc, planFile: planFile, targets: targets, lggr: lggr}

	return txn.NewOperation(OpApply, txn.KindProcessExecution,
		fmt.Sprintf("apply infrastructure plan %s", planFile),
		cmd.action, cmd.inverse,
		txn.WithDependencies(deps...),
	)
}
