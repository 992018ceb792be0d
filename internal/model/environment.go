package model

import (
	"io"
	"os"
	"strings"
)

// RunEnvironment is the process environment a run executes in.
type RunEnvironment struct {
	Cwd    string
	Stdout io.Writer
	Stderr io.Writer
	Env    map[string]string
	Debug  bool
}

// DefaultRunEnvironment captures the current process environment.
func DefaultRunEnvironment() RunEnvironment {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return RunEnvironment{
		Cwd:    cwd,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Env:    EnvMap(os.Environ()),
	}
}

// EnvMap converts KEY=VALUE pairs into a map. Entries without "=" are skipped.
func EnvMap(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}
