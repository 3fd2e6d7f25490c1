package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orgls/internal/env"
	"orgls/internal/metrics"
)

// Dispatcher decodes and runs commands against one Context.
type Dispatcher struct {
	Registry *Registry
	Context  *Context
}

func NewDispatcher(registry *Registry, c *Context) *Dispatcher {
	return &Dispatcher{Registry: registry, Context: c}
}

// Run decodes and executes a command and returns its error.
func (d *Dispatcher) Run(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	cmd, err := d.Registry.Decode(name, raw)
	if err != nil {
		metrics.Commands.WithLabelValues(name, "malformed").Inc()
		return nil, err
	}
	return d.RunCommand(ctx, cmd)
}

// RunCommand executes an already decoded command.
func (d *Dispatcher) RunCommand(ctx context.Context, cmd Command) (result any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("command %s panicked: %v", cmd.Name(), r)
		}
		metrics.ObserveCommand(cmd.Name(), metrics.Outcome(err), start)
	}()

	log.Debugf("executing %s", cmd.Name())
	return cmd.Execute(ctx, d.Context)
}

// Execute runs a command and turns any failure into a shown message and
// a nil result, so one bad request cannot take down a shared host.
func (d *Dispatcher) Execute(ctx context.Context, name string, raw json.RawMessage) any {
	result, err := d.Run(ctx, name, raw)
	if err != nil {
		d.report(ctx, name, err)
		return nil
	}
	return result
}

// ExecuteCommand is Execute for an already decoded command.
func (d *Dispatcher) ExecuteCommand(ctx context.Context, cmd Command) any {
	result, err := d.RunCommand(ctx, cmd)
	if err != nil {
		d.report(ctx, cmd.Name(), err)
		return nil
	}
	return result
}

func (d *Dispatcher) report(ctx context.Context, name string, err error) {
	level := env.LevelError
	if errors.Is(err, env.ErrRejectedByClient) {
		level = env.LevelWarning
	}
	log.Errorf("command %s failed: %s", name, err.Error())
	d.Context.Env.Show(ctx, level, fmt.Sprintf("%s failed: %v", name, err))
}
