// Package editor holds the form models for games and agents. A form keeps a
// working copy, validates it locally, and turns service validation failures
// into per-field errors instead of returning them.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

// ErrUnknownField is returned by Set for fields the form does not have.
var ErrUnknownField = errors.New("unknown field")

type AgentUpdater interface {
	Update(ctx context.Context, gameUUID, agentUUID string, def content.AgentDef) (*content.AgentDef, error)
}

type GameUpdater interface {
	Update(ctx context.Context, uuid string, def content.GameDef, overwriteAgents bool) (*content.GameDef, error)
}

// Syncer pushes stored definitions into a game's live sessions.
type Syncer interface {
	Sync(ctx context.Context, gameUUID string) error
}

// AgentForm edits one agent.
type AgentForm struct {
	GameUUID string
	Agent    content.AgentDef
	Rules    ActionRules
	// Errors holds the field errors of the last Validate or Save.
	Errors Errors
}

func NewAgentForm(gameUUID string, agent content.AgentDef) *AgentForm {
	return &AgentForm{GameUUID: gameUUID, Agent: agent, Rules: DefaultActionRules(), Errors: Errors{}}
}

// Fields lists the editable fields. Playable characters carry guardrail
// instructions instead of the persona fields.
func (f *AgentForm) Fields() []string {
	if f.Agent.IsPlayable {
		return []string{"name", "is_playable", "description", "instructions"}
	}
	return []string{"name", "is_playable", "description", "core_facts", "instructions", "example_speech"}
}

// Set assigns a field from its text form.
func (f *AgentForm) Set(field, value string) error {
	a := &f.Agent
	switch field {
	case "name":
		a.Name = value
	case "description":
		a.Description = value
	case "core_facts":
		a.CoreFacts = value
	case "instructions":
		a.Instructions = value
	case "example_speech":
		a.ExampleSpeech = value
	case "is_playable":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("is_playable: %w", err)
		}
		a.IsPlayable = b
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	return nil
}

// SetActions replaces the agent's actions with a copy of actions. They are
// checked against f.Rules by Validate and Save.
func (f *AgentForm) SetActions(actions []content.Action) {
	out := make([]content.Action, len(actions))
	for i, a := range actions {
		out[i] = a
		out[i].Parameters = make([]content.Parameter, len(a.Parameters))
		for j, p := range a.Parameters {
			out[i].Parameters[j] = p
			out[i].Parameters[j].Enum = append([]string{}, p.Enum...)
		}
	}
	f.Agent.Actions = out
}

// Validate runs the local checks and records their errors.
func (f *AgentForm) Validate() bool {
	errs := f.Rules.Validate(f.Agent.Actions)
	if f.Agent.Name == "" {
		errs["name"] = "Required"
	}
	f.Errors = errs
	return errs.Empty()
}

// Save validates and stores the agent, then syncs live sessions. It reports
// false without an error when validation failed locally or with a 422;
// f.Errors then says why.
func (f *AgentForm) Save(ctx context.Context, agents AgentUpdater, sessions Syncer) (bool, error) {
	if !f.Validate() {
		return false, nil
	}
	saved, err := agents.Update(ctx, f.GameUUID, f.Agent.UUID, f.Agent)
	if ok, err := settle(&f.Errors, err); !ok {
		return false, err
	}
	f.Agent = *saved
	if err := sessions.Sync(ctx, f.GameUUID); err != nil {
		return true, fmt.Errorf("sync sessions: %w", err)
	}
	slog.Debug("Agent saved", "game", f.GameUUID, "agent", f.Agent.UUID)
	return true, nil
}

// GameForm edits a game's name and description.
type GameForm struct {
	Game   content.GameDef
	Errors Errors
}

func NewGameForm(game content.GameDef) *GameForm {
	return &GameForm{Game: game, Errors: Errors{}}
}

func (f *GameForm) Fields() []string { return []string{"name", "description"} }

func (f *GameForm) Set(field, value string) error {
	switch field {
	case "name":
		f.Game.Name = value
	case "description":
		f.Game.Description = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	return nil
}

func (f *GameForm) Validate() bool {
	errs := Errors{}
	if f.Game.Name == "" {
		errs["name"] = "Required"
	}
	if f.Game.Description == "" {
		errs["description"] = "Required"
	}
	f.Errors = errs
	return errs.Empty()
}

// Save stores the game without touching its agents, then syncs live sessions.
func (f *GameForm) Save(ctx context.Context, games GameUpdater, sessions Syncer) (bool, error) {
	if !f.Validate() {
		return false, nil
	}
	def := f.Game
	def.Agents = nil
	saved, err := games.Update(ctx, f.Game.UUID, def, false)
	if ok, err := settle(&f.Errors, err); !ok {
		return false, err
	}
	f.Game = *saved
	if err := sessions.Sync(ctx, f.Game.UUID); err != nil {
		return true, fmt.Errorf("sync sessions: %w", err)
	}
	return true, nil
}

// settle records 422 details in errs. It returns true when err is nil.
func settle(errs *Errors, err error) (bool, error) {
	if err == nil {
		*errs = Errors{}
		return true, nil
	}
	if verr, ok := client.AsValidation(err); ok {
		*errs = fromValidation(verr)
		return false, nil
	}
	return false, err
}
