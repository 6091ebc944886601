package i3ipc

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MessageType is the numeric code carried in every frame header.
type MessageType uint32

// eventMask is set on every message type the peer sends unsolicited.
const eventMask MessageType = 1 << 31

// Command message types.
const (
	MsgRunCommand      MessageType = 0
	MsgGetWorkspaces   MessageType = 1
	MsgSubscribe       MessageType = 2
	MsgGetOutputs      MessageType = 3
	MsgGetTree         MessageType = 4
	MsgGetMarks        MessageType = 5
	MsgGetBarConfig    MessageType = 6
	MsgGetVersion      MessageType = 7
	MsgGetBindingModes MessageType = 8
	MsgGetConfig       MessageType = 9
	MsgSendTick        MessageType = 10
	MsgSync            MessageType = 11
)

// Event message types.
const (
	EventWorkspace       = eventMask | 0
	EventOutput          = eventMask | 1
	EventMode            = eventMask | 2
	EventWindow          = eventMask | 3
	EventBarConfigUpdate = eventMask | 4
	EventBinding         = eventMask | 5
	EventShutdown        = eventMask | 6
	EventTick            = eventMask | 7
)

var messageTypeNames = map[MessageType]string{
	MsgRunCommand:      "run_command",
	MsgGetWorkspaces:   "get_workspaces",
	MsgSubscribe:       "subscribe",
	MsgGetOutputs:      "get_outputs",
	MsgGetTree:         "get_tree",
	MsgGetMarks:        "get_marks",
	MsgGetBarConfig:    "get_bar_config",
	MsgGetVersion:      "get_version",
	MsgGetBindingModes: "get_binding_modes",
	MsgGetConfig:       "get_config",
	MsgSendTick:        "send_tick",
	MsgSync:            "sync",

	EventWorkspace:       "workspace",
	EventOutput:          "output",
	EventMode:            "mode",
	EventWindow:          "window",
	EventBarConfigUpdate: "barconfig_update",
	EventBinding:         "binding",
	EventShutdown:        "shutdown",
	EventTick:            "tick",
}

// IsEvent reports whether t is an event pushed by the peer rather than a reply.
func (t MessageType) IsEvent() bool {
	return t&eventMask != 0
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	if t.IsEvent() {
		return "event(" + strconv.FormatUint(uint64(t&^eventMask), 10) + ")"
	}
	return "type(" + strconv.FormatUint(uint64(t), 10) + ")"
}

// ParseMessageType maps a command name such as "get_tree" to its code.
// Numeric strings are accepted as raw codes.
func ParseMessageType(name string) (MessageType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range messageTypeNames {
		if n == name && !t.IsEvent() {
			return t, nil
		}
	}
	if v, err := strconv.ParseUint(name, 10, 32); err == nil {
		return MessageType(v), nil
	}
	return 0, errors.Errorf("i3ipc: unknown message type %q", name)
}
