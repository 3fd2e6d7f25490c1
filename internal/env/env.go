// Package env defines the capabilities a host supplies to commands:
// storage, process execution and messaging.
package env

import (
	"context"

	"orgls/internal/document"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Level mirrors the LSP message types.
type Level int

const (
	LevelError Level = iota + 1
	LevelWarning
	LevelInfo
	LevelLog
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	default:
		return "log"
	}
}

// MessageType converts l for LSP notifications.
func (l Level) MessageType() protocol.MessageType { return protocol.MessageType(l) }

type Storage interface {
	ReadToString(ctx context.Context, loc document.Location) (string, error)
	Write(ctx context.Context, loc document.Location, text string) error
	// Resolve resolves path against base. A leading "~/" refers to the
	// home directory.
	Resolve(path string, base document.Location) (document.Location, error)
}

type Process interface {
	// Execute runs program against a scratch file holding payload and
	// returns its standard output.
	Execute(ctx context.Context, program, payload string) (string, error)
}

type Messaging interface {
	Log(ctx context.Context, level Level, text string)
	Show(ctx context.Context, level Level, text string)
}

// EditPusher is implemented by hosts that let a remote client apply edits.
type EditPusher interface {
	PushEdit(ctx context.Context, loc document.Location, edits []protocol.TextEdit) error
}

// Env is the set of capabilities a host assembles.
type Env struct {
	Storage
	Process
	Messaging
}
