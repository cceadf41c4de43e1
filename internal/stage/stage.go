// Package stage is the boundary to opaque external processors (clipping
// scripts, atmospheric correction, cloud masking). The pipeline depends
// only on a stage's output layout, never on how it is invoked.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Stage runs an external processing step over the given inputs, writing its
// products into outputDir. params carries stage-specific key/value options.
type Stage interface {
	Run(ctx context.Context, inputs []string, outputDir string, params map[string]string) error
}

// CommandStage invokes a stage as a shell command. Argument templates may
// reference {inputs} (expands to one argument per input path), {output}
// (the output directory) and {param:<key>}.
type CommandStage struct {
	Program string
	Args    []string
	Log     *slog.Logger
}

// Run expands the argument templates and executes the command, streaming
// combined output to the diagnostic sink. A non-zero exit is the stage's
// failure signal.
func (s CommandStage) Run(ctx context.Context, inputs []string, outputDir string, params map[string]string) error {
	log := s.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	args, err := expandArgs(s.Args, inputs, outputDir, params)
	if err != nil {
		return fmt.Errorf("stage %s: %w", s.Program, err)
	}

	cmd := exec.CommandContext(ctx, s.Program, args...)
	log.Debug("running external stage", "program", s.Program, "args", strings.Join(args, " "))
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		log.Debug("external stage output", "program", s.Program, "output", string(out))
	}
	if err != nil {
		return fmt.Errorf("stage %s: %w", s.Program, err)
	}
	return nil
}

func expandArgs(templates, inputs []string, outputDir string, params map[string]string) ([]string, error) {
	var args []string
	for _, t := range templates {
		switch {
		case t == "{inputs}":
			args = append(args, inputs...)
		case t == "{output}":
			args = append(args, outputDir)
		case strings.HasPrefix(t, "{param:") && strings.HasSuffix(t, "}"):
			key := strings.TrimSuffix(strings.TrimPrefix(t, "{param:"), "}")
			v, ok := params[key]
			if !ok {
				return nil, fmt.Errorf("missing parameter %q", key)
			}
			args = append(args, v)
		default:
			args = append(args, t)
		}
	}
	return args, nil
}
