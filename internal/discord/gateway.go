package discord

import "encoding/json"

// Gateway opcodes, https://discord.com/developers/docs/topics/opcodes-and-status-codes
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opPresenceUpdate = 3
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// closeAuthenticationFailed is sent by the gateway when the token is invalid.
const closeAuthenticationFailed = 4004

// activityPlaying renders as "Playing <name>".
const activityPlaying = 0

// event is a frame received from the gateway.
type event struct {
	S  *int64          `json:"s"`
	T  string          `json:"t"`
	D  json.RawMessage `json:"d"`
	Op int             `json:"op"`
}

// command is a frame sent to the gateway.
type command struct {
	D  any `json:"d"`
	Op int `json:"op"`
}

type hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type ready struct {
	SessionID string `json:"session_id"`
	User      struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type identify struct {
	Presence   *presence         `json:"presence,omitempty"`
	Properties map[string]string `json:"properties"`
	Token      string            `json:"token"`
	Intents    int               `json:"intents"`
}

type presence struct {
	Since      *int64     `json:"since"`
	Status     string     `json:"status"`
	Activities []activity `json:"activities"`
	AFK        bool       `json:"afk"`
}

type activity struct {
	Name string `json:"name"`
	Type int    `json:"type"`
}

func presenceFor(text string) *presence {
	p := &presence{
		Status:     "online",
		Activities: []activity{},
	}
	if text != "" {
		p.Activities = append(p.Activities, activity{Name: text, Type: activityPlaying})
	}

	return p
}
