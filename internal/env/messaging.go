package env

import (
	"context"
	"fmt"
	"io"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("orgls.env")

// LogMessenger logs messages and prints shown messages to Out.
type LogMessenger struct {
	Out io.Writer
}

func (m LogMessenger) Log(_ context.Context, level Level, text string) {
	switch level {
	case LevelError:
		log.Error(text)
	case LevelWarning:
		log.Warning(text)
	case LevelInfo:
		log.Info(text)
	default:
		log.Debug(text)
	}
}

func (m LogMessenger) Show(ctx context.Context, level Level, text string) {
	m.Log(ctx, level, text)
	if m.Out != nil {
		fmt.Fprintf(m.Out, "%s: %s\n", level, text)
	}
}
