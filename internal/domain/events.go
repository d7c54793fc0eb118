package domain

// server -> client event types
const (
	EventConnected   = "connected"
	EventNewMessage  = "new_message"
	EventOnlineUsers = "online_users"
	EventPong        = "pong"
	EventError       = "error"
	EventDisconnect  = "force_disconnect"
)

// client -> server frame types
const (
	FrameInit           = "init"
	FramePing           = "ping"
	FrameGetOnlineUsers = "get_online_users"
)

type ServerMessage struct {
	Type        string   `json:"type"`
	UserID      int64    `json:"userId,omitempty"`
	Message     *Message `json:"message,omitempty"`
	OnlineUsers []int64  `json:"onlineUsers,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type ClientMessage struct {
	Type string `json:"type"`
	JWT  string `json:"jwt,omitempty"`
}
