// Package gateway implements the legacy TCP notification protocol: the
// handshake/session state machine and the fan-out of notification
// envelopes to authenticated sessions.
package gateway

// Sender tags fixed by the legacy protocol.
const (
	SenderGateway = "wspl-server"
	SenderClient  = "wspl-client"
)

// Handshake responses.
const (
	ResponseOK     = "ok"
	ResponseReject = "reject"
)

// Notification kinds the translator may emit.
const (
	KindNewMessageNoti     = "NEW_MESSAGE_NOTI"
	KindNewBroadcastNoti   = "NEW_BROADCAST_NOTI"
	KindAckMessage         = "ACK_MESSAGE"
	KindRevokeMessage      = "REVOKE_MESSAGE"
	KindNewMessage         = "NEW_MESSAGE"
	KindContactChangeState = "CONTACT_CHANGE_STATE"
)

// Envelope is one frame of the session protocol. Handshake frames carry
// Token, push notifications carry Response and an optional Body. An
// envelope is immutable once constructed.
type Envelope struct {
	Sender   string         `json:"sender"`
	Token    string         `json:"token,omitempty"`
	Response string         `json:"response,omitempty"`
	Body     map[string]any `json:"body,omitempty"`
}
