package server

import (
	contextpkg "context"

	"orgls/internal/command"
	"orgls/internal/env"
	"orgls/internal/scheduler"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// workspaceExecuteCommand runs one of the registered commands. Commands
// that only read return their result. Commands that edit may have to
// wait for workspace/applyEdit, which glsp cannot answer while this
// request holds the read loop, so they run in the background and the
// request returns null unless the server runs inline.
func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	s.client.bind(context)
	s.count(protocol.MethodWorkspaceExecuteCommand)

	ctx := contextpkg.Background()
	dispatcher := s.dispatcher()

	cmd, err := s.registry.DecodeArguments(params.Command, params.Arguments)
	if err != nil {
		log.Errorf("command %s: %v", params.Command, err)
		s.client.Show(ctx, env.LevelError, err.Error())
		return nil, nil
	}

	if s.inline || readOnly(cmd) {
		return dispatcher.ExecuteCommand(ctx, cmd), nil
	}

	s.tasks.Schedule(scheduler.Task{
		Name: cmd.Name(),
		Execute: func(ctx contextpkg.Context) error {
			if result := dispatcher.ExecuteCommand(ctx, cmd); result != nil {
				log.Debugf("command %s returned %v", cmd.Name(), result)
			}
			return nil
		},
	})
	return nil, nil
}

func readOnly(cmd command.Command) bool {
	switch cmd.(type) {
	case *command.HeadlineSearch, *command.ClockingStatus, *command.SyntaxTree:
		return true
	}
	return false
}
