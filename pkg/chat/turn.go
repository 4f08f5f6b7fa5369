package chat

import (
	"github.com/nstogner/eastworld-studio/pkg/content"
)

// RoleAction marks a turn where the agent invoked an action instead of speaking.
const RoleAction content.MessageRole = "action"

// Turn is one rendered line of the transcript.
type Turn struct {
	Role    content.MessageRole `json:"role"`
	Content string              `json:"content"`
	// Action is set for RoleAction turns.
	Action *content.ActionCompletion `json:"action,omitempty"`
}

// IsResponse reports whether the turn came from the agent.
func (t Turn) IsResponse() bool {
	return t.Role != content.RoleUser
}

func responseTurn(r content.InteractResponse) Turn {
	if r.IsText() {
		return Turn{Role: content.RoleAssistant, Content: r.Message.Content}
	}
	if r.Action == nil {
		return Turn{Role: content.RoleAssistant}
	}
	return Turn{Role: RoleAction, Content: r.Action.String(), Action: r.Action}
}
