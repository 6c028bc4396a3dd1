package wire

import "strings"

// Protocol constants
const (
	// Magic number for peerwire payloads ('PWRE')
	ProtocolMagic = 0x50575245

	// Protocol version
	ProtocolVersion = 0x0100 // v1.0

	// Maximum compiled payload size accepted by ReadFrame
	MaxFrameSize = 16 * 1024 * 1024
)

// Namespace identifies one of the six typed key spaces of a payload.
type Namespace uint8

const (
	NamespaceObject Namespace = 0x01
	NamespaceText   Namespace = 0x02
	NamespaceBool   Namespace = 0x03
	NamespaceNumber Namespace = 0x04
	NamespaceChars  Namespace = 0x05
	NamespaceBytes  Namespace = 0x06
)

// namespaces in wire order, used for deterministic compilation
var namespaces = []Namespace{
	NamespaceObject,
	NamespaceText,
	NamespaceBool,
	NamespaceNumber,
	NamespaceChars,
	NamespaceBytes,
}

// String returns the namespace name.
func (n Namespace) String() string {
	switch n {
	case NamespaceObject:
		return "object"
	case NamespaceText:
		return "text"
	case NamespaceBool:
		return "bool"
	case NamespaceNumber:
		return "number"
	case NamespaceChars:
		return "chars"
	case NamespaceBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// MergeMode governs how an affiliate payload's keys are layered into a
// payload at compile time.
type MergeMode uint8

const (
	// MergeNone ignores the affiliate.
	MergeNone MergeMode = iota

	// MergeDifference copies affiliate keys absent locally; local
	// values are never overwritten.
	MergeDifference

	// MergeReplace overwrites local values for keys the affiliate
	// also has; affiliate-only keys are not added.
	MergeReplace

	// MergeReplaceOrAdd overwrites shared keys and adds affiliate-only
	// keys.
	MergeReplaceOrAdd
)

// Routing and control field keys. Every frame carries FieldMAC and
// FieldCommandEnabled; control frames additionally carry FieldCommand
// and FieldArgument.
const (
	FieldMAC            = "MAC"
	FieldCommandEnabled = "COMMAND_ENABLED"
	FieldCommand        = "COMMAND"
	FieldArgument       = "ARGUMENT"
	FieldArgumentData   = "ARGUMENT_DATA"
	FieldAccessKey      = "ACCESS_KEY"
)

// Control vocabulary, matched case-insensitively on the wire.
const (
	CommandConnect    = "connect"
	CommandAccept     = "accept"
	CommandDecline    = "decline"
	CommandRename     = "rename"
	CommandDisconnect = "disconnect"
	CommandSuccess    = "success"
	CommandFailed     = "failed"
	CommandUnknown    = "unknown"
	CommandMessage    = "message"
)

// EqualCommand compares two command words the way the wire does.
func EqualCommand(a, b string) bool {
	return strings.EqualFold(a, b)
}
