package workflow

import (
	"context"
	"fmt"

	"github.com/shipstream/shipstream/pkg/logger"
	"github.com/shipstream/shipstream/provision"
	"github.com/shipstream/shipstream/txn"
)

// ProvisionWorkflow plans and applies an infrastructure change as one
// transaction. A failed apply rolls back by destroying the targeted
// resources and removing the plan file; without targets the destroy is
// degraded to a warning.
type ProvisionWorkflow struct {
	svc      provision.Service
	registry *txn.Registry
	lggr     logger.Logger
}

// NewProvisionWorkflow creates a provision workflow over the given
// provisioning service.
func NewProvisionWorkflow(svc provision.Service, registry *txn.Registry, lggr logger.Logger) *ProvisionWorkflow {
	return &ProvisionWorkflow{svc: svc, registry: registry, lggr: lggr}
}

// Run builds, prepares and executes the provision transaction.
func (w *ProvisionWorkflow) Run(ctx context.Context, spec ProvisionSpec, opts ...txn.Option) (*txn.Transaction, error) {
	t := w.registry.Create(fmt.Sprintf("provision: %s", spec.PlanFile), opts...)

	ops := []*txn.Operation{
		provision.PlanOperation(w.svc, spec.PlanFile, spec.Targets),
		provision.ApplyOperation(w.svc, spec.PlanFile, spec.Targets, w.lggr, provision.OpPlan),
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

	w.lggr.Infow("Infrastructure change applied", "workflow", "provision", "plan", spec.PlanFile, "targets", spec.Targets)

	return t, nil
}
