// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/jinterlante1206/AleutianRespond/services/agent/observability"
)

const (
	// commandTimeout bounds one diagnostic command.
	commandTimeout = 30 * time.Second

	maxStdoutChars = 3000
	maxStderrChars = 500
)

// Executor runs validated diagnostic commands and assembles the evidence
// report. One command's failure never aborts the batch.
type Executor struct {
	// binary replaces the leading "kubectl" token; tests point it at a stub.
	binary string
}

// NewExecutor returns an executor using the kubectl on PATH.
func NewExecutor() *Executor {
	return &Executor{binary: "kubectl"}
}

// Execute runs each command in order and returns the combined labeled
// report. Every command is re-validated against the whitelist first, so a
// drifted or bypassed planner still cannot reach the execution boundary.
func (e *Executor) Execute(ctx context.Context, commands []string) string {
	if len(commands) == 0 {
		return "No diagnostic commands were executed."
	}

	var report strings.Builder
	for _, command := range commands {
		report.WriteString(e.runOne(ctx, command))
		report.WriteString("\n")
	}
	return strings.TrimRight(report.String(), "\n")
}

func (e *Executor) runOne(ctx context.Context, command string) string {
	verdict := ValidateCommand(command)
	if !verdict.Allowed {
		observability.RecordRejectedCommand()
		slog.Warn("Blocked diagnostic command at execution boundary",
			"command", command, "reason", verdict.Reason)
		return reportBlock(command, "REJECTED: "+verdict.Reason, "", "")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd, err := e.buildCommand(ctx, command)
	if err != nil {
		return reportBlock(command, "FAILED TO PARSE: "+err.Error(), "", "")
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	status := "OK"
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		status = fmt.Sprintf("TIMED OUT after %s", commandTimeout)
	case runErr != nil:
		status = "FAILED: " + runErr.Error()
	}

	return reportBlock(command, status,
		TruncateText(stdout.String(), maxStdoutChars),
		TruncateText(stderr.String(), maxStderrChars))
}

// buildCommand prepares the exec.Cmd for a validated command. Piped
// commands go through the shell so the pipeline works; everything else is
// tokenized directly to keep metacharacters inert.
func (e *Executor) buildCommand(ctx context.Context, command string) (*exec.Cmd, error) {
	rewritten := e.binary + strings.TrimPrefix(command, "kubectl")

	if strings.Contains(command, "|") {
		return exec.CommandContext(ctx, "sh", "-c", rewritten), nil
	}

	tokens := strings.Fields(rewritten)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("command is empty after tokenization")
	}
	return exec.CommandContext(ctx, tokens[0], tokens[1:]...), nil
}

func reportBlock(command, status, stdout, stderr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== COMMAND: %s ===\n", command)
	fmt.Fprintf(&b, "STATUS: %s\n", status)
	if stdout != "" {
		fmt.Fprintf(&b, "STDOUT:\n%s\n", strings.TrimRight(stdout, "\n"))
	}
	if stderr != "" {
		fmt.Fprintf(&b, "STDERR:\n%s\n", strings.TrimRight(stderr, "\n"))
	}
	return b.String()
}
