package router

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"time"
	"unicode/utf8"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/template"
	"github.com/giantswarm/magictunnel/pkg/logging"
)

// execCommandContext is a variable so tests can substitute a fake process.
var execCommandContext = exec.CommandContext

// invokeSubprocess renders the routing spec's args/stdin through the
// argv-safe template path, spawns the command directly (no shell), and
// captures its output (spec.md §4.4 "subprocess").
func invokeSubprocess(ctx context.Context, def capabilities.ToolDefinition, routing *capabilities.SubprocessRouting, args map[string]interface{}, engine *template.Engine) (string, error) {
	renderedArgs := make([]string, 0, len(routing.Args))
	for _, raw := range routing.Args {
		rendered, err := engine.ReplaceForArgv(raw, args)
		if err != nil {
			return "", &InvalidArgumentsError{ToolName: def.Name, Problems: []string{err.Error()}}
		}
		renderedArgs = append(renderedArgs, rendered)
	}

	timeout := time.Duration(routing.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := execCommandContext(execCtx, routing.Command, renderedArgs...)
	if routing.Cwd != "" {
		cmd.Dir = routing.Cwd
	}
	for k, v := range routing.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if routing.StdinTemplate != "" {
		rendered, err := engine.ReplaceForArgv(routing.StdinTemplate, args)
		if err != nil {
			return "", &InvalidArgumentsError{ToolName: def.Name, Problems: []string{err.Error()}}
		}
		cmd.Stdin = bytes.NewBufferString(rendered)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("RouterSubprocess", "executing %s %v for tool %s", routing.Command, renderedArgs, def.Name)
	err := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		return "", &TimeoutError{ToolName: def.Name, Step: "subprocess execution"}
	}
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return "", &ToolExecutionFailedError{
			ToolName: def.Name,
			Detail:   err.Error(),
			ExitCode: exitCode,
			Stderr:   stderr.String(),
		}
	}

	return encodeOutput(stdout.Bytes()), nil
}

// encodeOutput returns stdout as UTF-8 text when valid, or a base64-tagged
// payload otherwise (spec.md §4.4 "capture stdout (utf-8 preferred; binary
// returned as base64-tagged content)").
func encodeOutput(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return "base64:" + base64.StdEncoding.EncodeToString(data)
}
