// Package manager keeps the manager instance running.
package manager

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ferry/pkg/instance"
)

// Action is what the policy decided to do.
type Action string

const (
	// ActionNone means no live instance carries the manager tag.
	ActionNone Action = "none"
	// ActionAlreadyRunning means a manager is up; nothing to do.
	ActionAlreadyRunning Action = "already_running"
	// ActionStart means the target must be started.
	ActionStart Action = "start"
)

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	// Target is the chosen manager. Zero for ActionNone.
	Target instance.Instance
	// Candidates are all live manager-tagged instances, ascending by ID.
	Candidates []instance.Instance
}

// Decide picks the manager from a snapshot. It has no side effects.
//
// Terminated instances are never candidates. If any candidate is running the
// lowest-ID running one is reported and nothing is started. Otherwise the
// lowest-ID candidate is to be started.
func Decide(instances []instance.Instance, sel Selector) Decision {
	candidates := instance.NewSnapshot(instances).Filter(func(i instance.Instance) bool {
		return !i.Terminated() && sel.Matches(i)
	})

	if len(candidates) == 0 {
		return Decision{Action: ActionNone}
	}

	for _, c := range candidates {
		if c.Running() {
			return Decision{Action: ActionAlreadyRunning, Target: c, Candidates: candidates}
		}
	}

	return Decision{Action: ActionStart, Target: candidates[0], Candidates: candidates}
}

// Compute is the slice of the provider the policy needs.
type Compute interface {
	Instances(ctx context.Context) ([]instance.Instance, error)
	StartInstance(ctx context.Context, id string) error
}

// Policy lists instances, decides, and starts the manager when needed.
type Policy struct {
	compute  Compute
	selector Selector
	dryRun   bool
}

// NewPolicy creates a Policy. With dryRun set, Ensure decides but never starts anything.
func NewPolicy(compute Compute, selector Selector, dryRun bool) *Policy {
	return &Policy{
		compute:  compute,
		selector: selector,
		dryRun:   dryRun,
	}
}

// Result is what Ensure did.
type Result struct {
	Decision
	Started bool
	DryRun  bool
}

// Ensure makes sure the manager is running.
// At most one start request is issued per call.
func (p *Policy) Ensure(ctx context.Context) (Result, error) {
	instances, err := p.compute.Instances(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list instances: %w", err)
	}

	d := Decide(instances, p.selector)
	res := Result{Decision: d, DryRun: p.dryRun}

	if len(d.Candidates) > 1 {
		log.Warn().
			Strs("candidates", instance.IDs(d.Candidates)).
			Str("chosen", d.Target.ID).
			Str("selector", p.selector.String()).
			Msg("multiple manager instances")
	}

	switch d.Action {
	case ActionNone:
		log.Warn().
			Str("selector", p.selector.String()).
			Int("instances", len(instances)).
			Msg("no manager instance found")
		return res, nil

	case ActionAlreadyRunning:
		log.Info().Str("instance_id", d.Target.ID).Msg("manager already running")
		return res, nil
	}

	if p.dryRun {
		log.Info().
			Str("instance_id", d.Target.ID).
			Str("state", d.Target.State.String()).
			Bool("dry_run", true).
			Msg("manager would be started")
		return res, nil
	}

	if err := p.compute.StartInstance(ctx, d.Target.ID); err != nil {
		return res, fmt.Errorf("start manager %s: %w", d.Target.ID, err)
	}

	res.Started = true
	log.Info().
		Str("instance_id", d.Target.ID).
		Str("state", d.Target.State.String()).
		Msg("manager started")
	return res, nil
}
