// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package command

import (
	"errors"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.commands == nil {
		t.Error("NewRegistry() commands map is nil")
	}
	if r.primary == nil {
		t.Error("NewRegistry() primary slice is nil")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	cmd := &Command{
		Name:        "status",
		Aliases:     []string{"st"},
		Usage:       "status",
		Description: "Show wallet state",
		Category:    CategoryInfo,
		Handler:     HandlerFunc(func([]string, *Context) error { return nil }),
	}

	if err := r.Register(cmd); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := r.Lookup("status")
	if !ok {
		t.Error("Register() command not found by name")
	}
	if got.Name != "status" {
		t.Errorf("Register() name = %v, want status", got.Name)
	}

	got, ok = r.Lookup("st")
	if !ok {
		t.Error("Register() command not found by alias")
	}
	if got.Name != "status" {
		t.Errorf("Register() alias lookup name = %v, want status", got.Name)
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := NewRegistry()

	_ = r.Register(&Command{Name: "lock"})
	if err := r.Register(&Command{Name: "lock"}); err == nil {
		t.Error("Register() expected error for duplicate command name")
	}
}

func TestRegistry_Register_AliasConflict(t *testing.T) {
	r := NewRegistry()

	_ = r.Register(&Command{Name: "quit", Aliases: []string{"q"}})
	if err := r.Register(&Command{Name: "query", Aliases: []string{"q"}}); err == nil {
		t.Error("Register() expected error for conflicting alias")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	_ = r.Register(&Command{Name: "quit", Aliases: []string{"q", "exit"}})

	tests := []struct {
		name    string
		lookup  string
		wantOK  bool
		wantCmd string
	}{
		{"by name", "quit", true, "quit"},
		{"by alias q", "q", true, "quit"},
		{"by alias exit", "exit", true, "quit"},
		{"not found", "notexist", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Lookup(tt.lookup)
			if ok != tt.wantOK {
				t.Errorf("Lookup() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Name != tt.wantCmd {
				t.Errorf("Lookup() name = %v, want %v", got.Name, tt.wantCmd)
			}
		})
	}
}

func TestRegistry_ByCategory(t *testing.T) {
	r := NewRegistry()

	_ = r.Register(&Command{Name: "send", Category: CategoryTransaction})
	_ = r.Register(&Command{Name: "status", Category: CategoryInfo})
	_ = r.Register(&Command{Name: "resolve", Category: CategoryInfo})

	categories := r.ByCategory()

	if len(categories[CategoryTransaction]) != 1 {
		t.Errorf("ByCategory() Transaction count = %v, want 1", len(categories[CategoryTransaction]))
	}
	if len(categories[CategoryInfo]) != 2 {
		t.Errorf("ByCategory() Info count = %v, want 2", len(categories[CategoryInfo]))
	}

	infoCmds := categories[CategoryInfo]
	if len(infoCmds) >= 2 && infoCmds[0].Name > infoCmds[1].Name {
		t.Error("ByCategory() commands should be sorted alphabetically within category")
	}
}

func TestHandlerFunc_Execute(t *testing.T) {
	var gotArgs []string
	var gotCtx *Context
	h := HandlerFunc(func(args []string, ctx *Context) error {
		gotArgs = args
		gotCtx = ctx
		return errors.New("boom")
	})

	ctx := &Context{Network: "testnet"}
	err := h.Execute([]string{"a", "b"}, ctx)
	if err == nil || err.Error() != "boom" {
		t.Errorf("Execute() error = %v, want boom", err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "a" {
		t.Errorf("Execute() args = %v", gotArgs)
	}
	if gotCtx != ctx {
		t.Error("Execute() should pass the context through")
	}
}
