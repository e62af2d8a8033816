package realtime

import "encoding/json"

// Phoenix channel protocol events used by the realtime backend.
const (
	eventJoin      = "phx_join"
	eventReply     = "phx_reply"
	eventLeave     = "phx_leave"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventPresence  = "presence"
	eventBroadcast = "broadcast"

	eventPresenceState = "presence_state"
	eventPresenceDiff  = "presence_diff"

	heartbeatTopic = "phoenix"

	replyStatusOK = "ok"
)

// message is one frame on the realtime socket.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// replyPayload is the payload of a phx_reply frame.
type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// joinPayload configures a channel subscription.
type joinPayload struct {
	Config channelConfig `json:"config"`
}

type channelConfig struct {
	Presence  *presenceConfig  `json:"presence,omitempty"`
	Broadcast *broadcastConfig `json:"broadcast,omitempty"`
}

type presenceConfig struct {
	Key string `json:"key"`
}

type broadcastConfig struct {
	Self bool `json:"self"`
	Ack  bool `json:"ack"`
}

// presencePush tracks this client's presence state on a joined channel.
type presencePush struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// broadcastPush carries one outbound broadcast message.
type broadcastPush struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// broadcastEnvelope is the payload of an inbound broadcast frame.
type broadcastEnvelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// presenceDiff is the payload of a presence_diff frame.
type presenceDiff struct {
	Joins  map[string]json.RawMessage `json:"joins"`
	Leaves map[string]json.RawMessage `json:"leaves"`
}
