package content_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

func TestInteractResponse_DecodeText(t *testing.T) {
	var out content.InteractWithDebug
	err := json.Unmarshal([]byte(`{"response":{"role":"assistant","content":"Hi there"},"debug":[{"role":"system","content":"prompt"}]}`), &out)
	require.NoError(t, err)

	require.True(t, out.Response.IsText())
	assert.Nil(t, out.Response.Action)
	assert.Equal(t, "Hi there", out.Response.Message.Content)
	assert.Len(t, out.Debug, 1)
}

func TestInteractResponse_DecodeAction(t *testing.T) {
	var out content.InteractWithDebug
	err := json.Unmarshal([]byte(`{"response":{"action":"Attack","args":{"target":"player"}}}`), &out)
	require.NoError(t, err)

	require.False(t, out.Response.IsText())
	assert.Equal(t, "Attack", out.Response.Action.Action)
	assert.Equal(t, "Attack(target=player)", out.Response.Action.String())
	assert.Empty(t, out.Debug)
}

func TestInteractResponse_EmptyContentIsStillText(t *testing.T) {
	var r content.InteractResponse
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":""}`), &r))
	assert.True(t, r.IsText())
}

func TestActionCompletion_String(t *testing.T) {
	a := content.ActionCompletion{Action: "Flee"}
	assert.Equal(t, "Flee()", a.String())

	a = content.ActionCompletion{Action: "Give", Args: map[string]any{"item": "key", "count": float64(2)}}
	s := a.String()
	// map order is not stable
	assert.Contains(t, []string{"Give(item=key, count=2)", "Give(count=2, item=key)"}, s)
}

func TestScore(t *testing.T) {
	assert.False(t, content.ScoreUnknown.Known())
	assert.Equal(t, "unknown", content.ScoreUnknown.String())
	assert.False(t, content.Score(0).Known())
	assert.True(t, content.Score(1).Known())
	assert.Equal(t, "5", content.Score(5).String())
	assert.False(t, content.Score(6).Known())
}

func TestLore_IsKnownBy(t *testing.T) {
	l := content.Lore{KnownBy: []string{"a1", "a2"}}
	assert.True(t, l.IsKnownBy("a2"))
	assert.False(t, l.IsKnownBy("a3"))
}

func TestConversation_EmptyEncodesAsObject(t *testing.T) {
	data, err := json.Marshal(content.StartChatBody{History: []content.Message{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation":{},"history":[]}`, string(data))
}

func TestInteractResponse_DecodeNull(t *testing.T) {
	var out content.InteractWithDebug
	require.NoError(t, json.Unmarshal([]byte(`{"response":null,"debug":null}`), &out))
	assert.True(t, out.Response.Empty())
	assert.Nil(t, out.Response.Message)
	assert.Nil(t, out.Response.Action)

	var r content.InteractResponse
	require.NoError(t, json.Unmarshal([]byte(`{"action":"Flee"}`), &r))
	assert.False(t, r.Empty())
}

func TestNilListsEncodeAsEmpty(t *testing.T) {
	data, err := json.Marshal(content.AgentDef{Name: "Dolores"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"personal_lore":[]`)
	assert.Contains(t, string(data), `"actions":[]`)

	data, err = json.Marshal(content.Action{Name: "flee"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"flee","description":"","parameters":[]}`, string(data))

	data, err = json.Marshal(content.Parameter{Name: "target", Type: "string"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"target","description":"","type":"string","enum":[]}`, string(data))

	// Pointers and nested values use the same encoding.
	data, err = json.Marshal(&content.GameDef{Agents: []content.AgentDef{{Name: "William"}}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"actions":[]`)
}
