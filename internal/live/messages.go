package live

import (
	"encoding/json"
	"fmt"

	"github.com/potrolco/tarsdeck/internal/tars"
)

// MessageType is the routing key carried in the "type" field of inbound frames.
type MessageType string

// Known inbound message types.
const (
	TypeWorkersInfo     MessageType = "workers_info"
	TypePendingTasks    MessageType = "pending_tasks"
	TypeCompletedTasks  MessageType = "completed_tasks"
	TypeFrontendMessage MessageType = "frontend_message"
)

// Stream names accepted by start_<name> / stop_<name>.
const (
	StreamWorkersInfo      = "workers_info"
	StreamPendingTasks     = "pending_tasks_info"
	StreamCompletedTasks   = "completed_tasks_info"
	StreamFrontendMessages = "frontend_messages"
)

const commandDismissMessage = "dismiss_message"

// Command is the outbound frame.
type Command struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// Payload is implemented by every typed inbound payload.
type Payload interface {
	payloadType() MessageType
}

// WorkersInfo is the full worker list pushed on the workers_info stream.
type WorkersInfo struct {
	Workers []tars.Worker `json:"workers"`
}

// PendingTasks is the full pending queue pushed on the pending_tasks_info stream.
type PendingTasks struct {
	Tasks []tars.QueueTask `json:"data"`
	Total int              `json:"recordsTotal"`
}

// CompletedTasks is the recent history pushed on the completed_tasks_info stream.
type CompletedTasks struct {
	Tasks []tars.HistoryTask `json:"data"`
	Total int                `json:"recordsTotal"`
}

// FrontendMessages is the current notification list.
type FrontendMessages struct {
	Messages []tars.FrontendMessage `json:"data"`
}

func (*WorkersInfo) payloadType() MessageType      { return TypeWorkersInfo }
func (*PendingTasks) payloadType() MessageType     { return TypePendingTasks }
func (*CompletedTasks) payloadType() MessageType   { return TypeCompletedTasks }
func (*FrontendMessages) payloadType() MessageType { return TypeFrontendMessage }

// Message is a decoded inbound frame. Payload is nil for types this client
// does not know; Raw always holds the whole frame.
type Message struct {
	Type    MessageType
	Success bool
	Payload Payload
	Raw     json.RawMessage
}

// decodeMessage parses one frame. ok is false for frames without a type,
// which are not routable and carry no error.
func decodeMessage(frame []byte) (msg Message, ok bool, err error) {
	var env struct {
		Type    string `json:"type"`
		Success bool   `json:"success"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return Message{}, false, nil
	}

	msg = Message{
		Type:    MessageType(env.Type),
		Success: env.Success,
		Raw:     append(json.RawMessage(nil), frame...),
	}

	var payload Payload
	switch msg.Type {
	case TypeWorkersInfo:
		payload = &WorkersInfo{}
	case TypePendingTasks:
		payload = &PendingTasks{}
	case TypeCompletedTasks:
		payload = &CompletedTasks{}
	case TypeFrontendMessage:
		payload = &FrontendMessages{}
	default:
		return msg, true, nil
	}
	if err := json.Unmarshal(frame, payload); err != nil {
		return Message{}, false, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	msg.Payload = payload
	return msg, true, nil
}
