package transcript

import (
	"time"

	"github.com/nstogner/eastworld-studio/pkg/chat"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

// EntryType defines the kind of transcript line.
type EntryType string

const (
	TypeTranscript EntryType = "transcript"
	TypeTurn       EntryType = "turn"
)

// Header is the first line of a transcript file.
type Header struct {
	Type      EntryType `json:"type"` // Always "transcript"
	ID        string    `json:"id"`
	Chat      chat.Info `json:"chat"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"timestamp"`
}

// Entry is one turn of the chat, with the prompt trace for agent turns.
type Entry struct {
	Type      EntryType         `json:"type"`
	ID        string            `json:"id"`
	Index     int               `json:"index"`
	Timestamp time.Time         `json:"timestamp"`
	Turn      chat.Turn         `json:"turn"`
	Debug     []content.Message `json:"debug,omitempty"`
}

// Meta describes a transcript in index.json.
type Meta struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	GameUUID    string    `json:"game_uuid"`
	SessionUUID string    `json:"session_uuid"`
	AgentUUID   string    `json:"agent_uuid"`
	PlayerUUID  string    `json:"player_uuid,omitempty"`
	Turns       int       `json:"turns"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// Index is the structure of index.json.
type Index struct {
	Transcripts []Meta `json:"transcripts"`
}
