// Package deps reports availability of the external binaries gnsstec
// invokes.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Requirement defines an external dependency gnsstec relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Commands with a path separator are checked on disk; bare names go through
// PATH lookup.
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
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		case strings.ContainsRune(cmd, filepath.Separator):
			if info, err := os.Stat(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else if info.IsDir() || info.Mode()&0o111 == 0 {
				status.Detail = fmt.Sprintf("%q is not executable", cmd)
			} else {
				status.Available = true
			}
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found in PATH", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}
