package loader

import (
	"context"
	"fmt"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
)

// Stage names, in the order a full load runs them.
const (
	StageReset        = "reset"
	StageRoutes       = "routes"
	StageFairways     = "fairways"
	StageISRS         = "isrs"
	StageBridges      = "bridges"
	StageLocks        = "locks"
	StageChainFairway = "chainFairway"
	StageChainBridges = "chainBridges"
	StageSpatialTree  = "spatialTree"
)

// step is one stage of the load plan. needs lists the stages that must have
// run earlier in the plan.
type step struct {
	name  string
	needs []string
	run   func(ctx context.Context, st *state) error
}

// plan returns the load stages. Node stages depend on the labels their
// foreign keys point at; chain stages depend on the nodes they join.
func (l *Loader) plan() []step {
	var steps []step
	if l.opts.Truncate {
		steps = append(steps, step{name: StageReset, run: l.reset})
	}
	steps = append(steps,
		step{name: StageRoutes, run: l.nodes(domain.LabelRoute)},
		step{name: StageFairways, needs: []string{StageRoutes}, run: l.nodes(domain.LabelFairway)},
		step{name: StageISRS, run: l.nodes(domain.LabelISRS)},
		step{name: StageBridges, needs: []string{StageRoutes, StageFairways, StageISRS}, run: l.nodes(domain.LabelBridge)},
		step{name: StageLocks, needs: []string{StageRoutes, StageFairways, StageISRS}, run: l.nodes(domain.LabelLock)},
		step{name: StageChainFairway, needs: []string{StageFairways}, run: l.chainFairways},
		step{name: StageChainBridges, needs: []string{StageBridges, StageLocks}, run: l.chainObstructions},
		step{name: StageSpatialTree, needs: []string{StageRoutes, StageFairways}, run: l.spatialTree},
	)
	if l.opts.Truncate {
		for i := 1; i < len(steps); i++ {
			steps[i].needs = append(steps[i].needs, StageReset)
		}
	}
	return steps
}

// validatePlan rejects a plan in which a stage runs before a stage it needs,
// needs a stage that is not planned, or appears twice.
func validatePlan(steps []step) error {
	done := make(map[string]bool, len(steps))
	for _, s := range steps {
		if done[s.name] {
			return fmt.Errorf("stage %q planned twice: %w", s.name, domain.ErrStageOrder)
		}
		for _, need := range s.needs {
			if !done[need] {
				return fmt.Errorf("stage %q needs %q first: %w", s.name, need, domain.ErrStageOrder)
			}
		}
		done[s.name] = true
	}
	return nil
}
