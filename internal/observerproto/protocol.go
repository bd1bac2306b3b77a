package observerproto

import "scrapbot.ai/internal/bot"

// Version is the snapshot stream protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeHello     = "HELLO"
	TypeSnapshot  = "SNAPSHOT"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Every is the tick stride: 1 streams every snapshot, 5 every fifth.
	Every int `json:"every,omitempty"`
	// Events asks for the recent-events ring to be kept in each snapshot.
	Events bool `json:"events,omitempty"`
}

// Server -> Client. Sent once after a valid SUBSCRIBE.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	RunID           string `json:"run_id"`
	Map             string `json:"map"`
	Size            int    `json:"size"`
}

// Server -> Client. Sent after every tick selected by the subscription.
type SnapshotMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	RunID           string       `json:"run_id"`
	Snapshot        bot.Snapshot `json:"snapshot"`
}

// Envelope is used to sniff the type of an incoming message.
type Envelope struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}
