package chatclient

import "context"

// Client bundles the pieces a chat UI needs for one signed-in user: the
// REST API, the push socket and the store of the open conversation.
type Client struct {
	API          *API
	Hub          *Hub
	Socket       *Socket
	Conversation *ConversationStore
}

// NewClient wires a socket and a conversation store for me on top of api.
// api must already hold the session token.
func NewClient(api *API, me int64) *Client {
	hub := NewHub()
	return &Client{
		API:          api,
		Hub:          hub,
		Socket:       NewSocket(api.SocketURL(), api.Token, hub),
		Conversation: NewConversationStore(me, api, hub),
	}
}

// Run keeps the socket connected until ctx is done, re-syncing the open
// conversation after every reconnect.
func (c *Client) Run(ctx context.Context) error {
	c.Conversation.Attach(ctx, c.Socket)
	return c.Socket.Run(ctx)
}
