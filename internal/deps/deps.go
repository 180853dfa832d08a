// Package deps checks for the external binaries the pipeline shells out to.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrUnavailable marks a required external tool that cannot be found.
var ErrUnavailable = errors.New("dependency unavailable")

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Install     string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Require resolves req.Command on PATH and returns its absolute path. A
// missing binary yields an error wrapping ErrUnavailable with the install
// hint.
func Require(req Requirement) (string, error) {
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		return "", fmt.Errorf("%w: %s: command not configured", ErrUnavailable, req.Name)
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		if req.Install != "" {
			return "", fmt.Errorf("%w: %s not found. Install it with: %s", ErrUnavailable, cmd, req.Install)
		}
		return "", fmt.Errorf("%w: %s not found", ErrUnavailable, cmd)
	}
	return path, nil
}

// Pipeline binaries.
var (
	YTDLP = Requirement{
		Name:        "yt-dlp",
		Command:     "yt-dlp",
		Description: "Fetches item metadata and caption files",
		Install:     "pip install yt-dlp",
	}
	ClaudeCLI = Requirement{
		Name:        "claude",
		Command:     "claude",
		Description: "Enrichment backend when enrichment.backend is cli",
		Install:     "npm install -g @anthropic-ai/claude-code",
		Optional:    true,
	}
)
