package agent

import (
	"log/slog"

	"github.com/taskmesh/taskmesh/pkg/llm"
	"github.com/taskmesh/taskmesh/pkg/models"
	"github.com/taskmesh/taskmesh/pkg/store"
	"github.com/taskmesh/taskmesh/pkg/tools"
)

// Roster maps agent names to specialist instances for one session.
type Roster struct {
	specialists map[models.AgentName]*Specialist
	human       *HumanAgent
}

// NewRoster instantiates one specialist per roster member plus the
// human agent, all sharing the session's store handle.
func NewRoster(registry *tools.Registry, client llm.Client, st store.Store, maxIters int, logger *slog.Logger) *Roster {
	r := &Roster{
		specialists: make(map[models.AgentName]*Specialist, len(models.SpecialistAgents)),
		human:       NewHumanAgent(st, logger),
	}
	for _, name := range models.SpecialistAgents {
		r.specialists[name] = NewSpecialist(name, registry.Slice(name), client, st, maxIters, logger)
	}
	return r
}

// Specialist returns the named specialist, falling back to Generic for
// names outside the roster.
func (r *Roster) Specialist(name models.AgentName) *Specialist {
	if s, ok := r.specialists[name]; ok {
		return s
	}
	return r.specialists[models.AgentGeneric]
}

// Human returns the human-in-the-loop agent.
func (r *Roster) Human() *HumanAgent { return r.human }
