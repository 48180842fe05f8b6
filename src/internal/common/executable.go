package common

import (
	"os/exec"
	"path/filepath"
	"runtime"
)

// CommandCandidates expands a server command into the spellings it may
// resolve under on the current platform. npm-installed servers such as
// typescript-language-server land on Windows as .cmd or .bat shims, so a
// bare command name alone would report them missing.
func CommandCandidates(command string) []string {
	if runtime.GOOS != "windows" {
		return []string{command}
	}
	switch filepath.Ext(command) {
	case ".cmd", ".bat", ".exe":
		return []string{command}
	}
	return []string{command, command + ".cmd", command + ".bat", command + ".exe"}
}

// ResolveCommand searches PATH for the first candidate spelling of a server
// command and returns its location, or false when none resolve.
func ResolveCommand(command string) (string, bool) {
	for _, candidate := range CommandCandidates(command) {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, true
		}
	}
	return "", false
}
