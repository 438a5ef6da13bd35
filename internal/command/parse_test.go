// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package command

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCmd  string
		wantArgs []string
	}{
		{
			name:    "empty input",
			input:   "",
			wantCmd: "",
		},
		{
			name:    "whitespace only",
			input:   "   \t  ",
			wantCmd: "",
		},
		{
			name:    "bare command",
			input:   "status",
			wantCmd: "status",
		},
		{
			name:     "command with args",
			input:    "send 5 algo from main to cold",
			wantCmd:  "send",
			wantArgs: []string{"5", "algo", "from", "main", "to", "cold"},
		},
		{
			name:     "quoted argument groups words",
			input:    `send 5 algo from main to cold note="coffee fund"`,
			wantCmd:  "send",
			wantArgs: []string{"5", "algo", "from", "main", "to", "cold", "note=coffee fund"},
		},
		{
			name:     "leading and trailing whitespace",
			input:    "  unlock  ",
			wantCmd:  "unlock",
			wantArgs: nil,
		},
		{
			name:     "tabs separate like spaces",
			input:    "watch\tADDR\tsavings",
			wantCmd:  "watch",
			wantArgs: []string{"ADDR", "savings"},
		},
		{
			name:     "empty quotes produce nothing",
			input:    `rename main ""`,
			wantCmd:  "rename",
			wantArgs: []string{"main"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := Parse(tt.input)
			if cmd != tt.wantCmd {
				t.Errorf("Parse() cmd = %q, want %q", cmd, tt.wantCmd)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("Parse() args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}
}
