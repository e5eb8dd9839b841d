package domain

import "time"

// StatusChange is emitted once per successful status update.
type StatusChange struct {
	OrderID     int64     `json:"order_id"`
	OwnerUserID string    `json:"owner_user_id"`
	OldStatus   Status    `json:"old_status"`
	NewStatus   Status    `json:"new_status"`
	ChangedBy   string    `json:"changed_by"`
	ChangedAt   time.Time `json:"changed_at"`
}

const (
	EventStatusUpdate = "STATUS_UPDATE"
	EventAuth         = "AUTH"
	EventConnected    = "CONNECTED"
)

// ControlMessage carries the handshake frames: AUTH from the client, CONNECTED from the server
// once the socket is registered.
type ControlMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// LiveMessage is the frame pushed to tracking sockets.
type LiveMessage struct {
	Type    string      `json:"type"`
	Payload LivePayload `json:"payload"`
}

type LivePayload struct {
	OrderID   int64  `json:"pedidoId"`
	NewStatus Status `json:"novoStatus"`
}

func NewStatusUpdate(orderID int64, st Status) LiveMessage {
	return LiveMessage{Type: EventStatusUpdate, Payload: LivePayload{OrderID: orderID, NewStatus: st}}
}

// PushSubscription mirrors the browser PushSubscription JSON.
type PushSubscription struct {
	UserID   string   `json:"-"`
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}
