package serialir

import "errors"

// Reply is the message the device sends after executing a command.
type Reply struct {
	// Command is the command word the reply is for.
	Command string
	// Success is whether the command was successful.
	Success bool
	// Message is the text following the status, such as the error.
	Message string
}

// Version asks the device for its firmware version, returned as the reply
// message.
type Version struct{}

// EncodeCommand implements the [irrelay.Command] interface.
func (Version) EncodeCommand() []string {
	return []string{"VERSION"}
}

var (
	// ErrUnsuccessfulCommand is returned with a reply when a command was not
	// successful.
	ErrUnsuccessfulCommand = errors.New("serialir: unsuccessful command")
	// ErrChecksum is returned for lines whose checksum does not match.
	ErrChecksum = errors.New("serialir: checksum mismatch")
)
