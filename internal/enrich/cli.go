package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/starford/study/internal/deps"
)

type cliCaller struct {
	command string
}

func (c *cliCaller) complete(ctx context.Context, system, user string) (string, error) {
	cmd := exec.CommandContext(ctx, c.command, "-p", system+"\n\n"+user, "--output-format", "json")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", &DependencyError{Name: c.command, Install: deps.ClaudeCLI.Install, Err: err}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("enrich: claude CLI exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("enrich: run claude CLI: %w", err)
	}
	return unwrapCLIOutput(stdout.String()), nil
}

// unwrapCLIOutput extracts the "result" text from the CLI's JSON envelope.
// Output that is not an envelope is returned as is.
func unwrapCLIOutput(out string) string {
	out = strings.TrimSpace(out)
	var envelope struct {
		Result *string `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &envelope); err == nil && envelope.Result != nil {
		return *envelope.Result
	}
	return out
}
