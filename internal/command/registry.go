package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"orgls/internal/document"
	"orgls/internal/env"

	"github.com/go-playground/validator/v10"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Prefix is prepended to command names advertised to clients.
const Prefix = "orgls."

// Registry maps command names to payload constructors.
type Registry struct {
	constructors map[string]func() Command
	validate     *validator.Validate
}

// NewRegistry returns the registry of every known command.
func NewRegistry() *Registry {
	r := &Registry{
		constructors: make(map[string]func() Command),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, fn := range []func() Command{
		func() Command { return &HeadlineCreate{} },
		func() Command { return &HeadlineUpdate{} },
		func() Command { return &HeadlineRemove{} },
		func() Command { return &HeadlineDuplicate{} },
		func() Command { return &HeadlineToc{} },
		func() Command { return &HeadlineSearch{} },
		func() Command { return &ClockingStart{} },
		func() Command { return &ClockingStop{} },
		func() Command { return &ClockingStatus{} },
		func() Command { return &SrcBlockTangle{} },
		func() Command { return &SrcBlockTangleAll{} },
		func() Command { return &SrcBlockDetangle{} },
		func() Command { return &SrcBlockDetangleAll{} },
		func() Command { return &SrcBlockExecute{} },
		func() Command { return &SrcBlockExecuteAll{} },
		func() Command { return &DocumentFormat{} },
		func() Command { return &SyntaxTree{} },
	} {
		r.constructors[fn().Name()] = fn
	}
	return r
}

// Names returns every command name with Prefix, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, Prefix+name)
	}
	sort.Strings(names)
	return names
}

// Decode builds the command called name from its JSON argument. The name
// may carry Prefix. Unknown names and arguments that do not decode or
// validate return ErrMalformedInput.
func (r *Registry) Decode(name string, raw json.RawMessage) (Command, error) {
	name = strings.TrimPrefix(name, Prefix)
	fn, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", env.ErrMalformedInput, name)
	}
	cmd := fn()
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", env.ErrMalformedInput, name, err)
	}
	if err := r.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", env.ErrMalformedInput, name, err)
	}
	return cmd, nil
}

// Target returns the document a raw command argument names, either as
// its "url" field or as a bare string. Hosts that do not keep documents
// open use it to load the document before running the command.
func Target(raw json.RawMessage) (document.Location, bool) {
	var arg struct {
		URL document.Location `json:"url"`
	}
	if err := json.Unmarshal(raw, &arg); err == nil && arg.URL != "" {
		return arg.URL, true
	}
	var loc document.Location
	if err := json.Unmarshal(raw, &loc); err == nil && loc != "" {
		return loc, true
	}
	return "", false
}

// DecodeArguments decodes the last of an LSP executeCommand argument list.
func (r *Registry) DecodeArguments(name string, args []any) (Command, error) {
	var raw json.RawMessage
	if len(args) > 0 {
		data, err := json.Marshal(args[len(args)-1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", env.ErrMalformedInput, name, err)
		}
		raw = data
	}
	return r.Decode(name, raw)
}

// Runnable describes cmd as a client-side action such as a code lens.
func Runnable(cmd Command) protocol.Command {
	return protocol.Command{
		Title:     cmd.Title(),
		Command:   Prefix + cmd.Name(),
		Arguments: []any{cmd},
	}
}
