package env

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
)

// ExecProcess runs payloads with local programs. Lua payloads run in an
// embedded interpreter instead of a child process. A program that exits
// with a non-zero status still yields its standard output.
type ExecProcess struct{}

func (ExecProcess) Execute(ctx context.Context, program, payload string) (string, error) {
	dir, err := os.MkdirTemp("", "orgls-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, ".orgls")
	if err := os.WriteFile(file, []byte(payload), 0600); err != nil {
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}

	if program == "lua" {
		return runLua(ctx, file)
	}

	cmd := exec.CommandContext(ctx, program, file)
	cmd.Dir = dir
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// the output is still the result
		log.Infof("%s exited with status %d", program, exitErr.ExitCode())
		return string(out), nil
	}
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", program, err)
	}
	return string(out), nil
}

func runLua(ctx context.Context, file string) (string, error) {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	var out bytes.Buffer
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		for i := 1; i <= L.GetTop(); i++ {
			if i > 1 {
				out.WriteByte('\t')
			}
			out.WriteString(L.ToStringMeta(L.Get(i)).String())
		}
		out.WriteByte('\n')
		return 0
	}))

	if err := L.DoFile(file); err != nil {
		return out.String(), fmt.Errorf("lua: %w", err)
	}
	return out.String(), nil
}
