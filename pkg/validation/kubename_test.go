// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKubeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "checkout", false},
		{"with hyphen", "payment-service", false},
		{"with digits", "worker-2", false},
		{"single char", "a", false},
		{"max length", strings.Repeat("a", 63), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 64), true},
		{"uppercase", "Checkout", true},
		{"leading hyphen", "-checkout", true},
		{"trailing hyphen", "checkout-", true},
		{"underscore", "checkout_svc", true},
		{"slash", "ns/pod", true},
		{"flag smuggling", "--kubeconfig=/tmp/x", true},
		{"shell meta", "prod;rm", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKubeName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeKubeName(t *testing.T) {
	got, err := SanitizeKubeName("  Checkout ")
	require.NoError(t, err)
	assert.Equal(t, "checkout", got)

	_, err = SanitizeKubeName("not valid!")
	assert.Error(t, err)
}
