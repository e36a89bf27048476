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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		allowed bool
	}{
		{"get pods", "kubectl get pods -n default", true},
		{"describe", "kubectl describe pod payment-7f9c -n default", true},
		{"logs with tail", "kubectl logs payment-7f9c -n default --tail=50", true},
		{"top", "kubectl top pods -n default", true},
		{"piped get", "kubectl get events -n default | head -20", true},
		{"leading whitespace", "  kubectl get pods -n default", true},
		{"delete", "kubectl delete pod x", false},
		{"apply", "kubectl apply -f evil.yaml", false},
		{"exec", "kubectl exec -it pod -- sh", false},
		{"scale", "kubectl scale deployment payment --replicas=0", false},
		{"not kubectl", "rm -rf /", false},
		{"bare kubectl", "kubectl", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := ValidateCommand(tt.command)
			assert.Equal(t, tt.allowed, verdict.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, verdict.Reason)
			}
		})
	}
}

func TestParseVerb(t *testing.T) {
	for _, token := range []string{"get", "describe", "logs", "top", "GET", "Logs"} {
		_, ok := ParseVerb(token)
		assert.True(t, ok, token)
	}
	for _, token := range []string{"delete", "apply", "exec", "edit", ""} {
		_, ok := ParseVerb(token)
		assert.False(t, ok, token)
	}
}

func TestSanitizeFreeText(t *testing.T) {
	got := SanitizeFreeText("alert; rm -rf | cat `id` $HOME && echo", 0)
	assert.NotContains(t, got, ";")
	assert.NotContains(t, got, "|")
	assert.NotContains(t, got, "&")
	assert.NotContains(t, got, "$")
	assert.NotContains(t, got, "`")
	assert.Contains(t, got, "alert")

	long := SanitizeFreeText("aaaaaaaaaa", 4)
	assert.Equal(t, "aaaa", long)
}

func TestSanitizeNamespace(t *testing.T) {
	assert.Equal(t, "prod", SanitizeNamespace("prod"))
	assert.Equal(t, "prod", SanitizeNamespace("PROD"))
	assert.Equal(t, "default", SanitizeNamespace(""))
	assert.Equal(t, "default", SanitizeNamespace(" ;| "))
	assert.Equal(t, "default", SanitizeNamespace("bad_name"))
	assert.Len(t, SanitizeNamespace(strings.Repeat("a", 100)), 63)
}
