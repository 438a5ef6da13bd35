// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// configdoc generates markdown documentation from Go struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/avault-algo/avault/internal/util"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
	UsedBy      string
}

func main() {
	fmt.Println("# Configuration Reference")
	fmt.Println()
	fmt.Println("Auto-generated from Go struct tags. Do not edit manually.")
	fmt.Println()
	fmt.Println("---")
	fmt.Println()

	fmt.Println("## avshell Configuration")
	fmt.Println()
	fmt.Println("File: `config.yaml` in the avault data directory (`-d` or `AVAULT_DATA`)")
	fmt.Println()
	printStructTable(reflect.TypeOf(util.Config{}))
	fmt.Println()

	fmt.Println("## Environment Variables")
	fmt.Println()
	printEnvVars()
}

func printStructTable(t reflect.Type) {
	fmt.Println("| Field | Type | Default | Description |")
	fmt.Println("|-------|------|---------|-------------|")
	printStructTableWithPrefix(t, "")
}

func printStructTableWithPrefix(t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		// Handle tag options like "omitempty"
		fieldName := strings.Split(tag, ",")[0]
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		desc := field.Tag.Get("description")
		if desc == "" {
			desc = "(no description)"
		}

		// A list of config blocks gets its own rows, one per nested field.
		if field.Type.Kind() == reflect.Slice && field.Type.Elem().Kind() == reflect.Struct {
			fmt.Printf("| `%s` | list | `[]` | %s |\n", fieldName, desc)
			printStructTableWithPrefix(field.Type.Elem(), fieldName+"[]")
			continue
		}

		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}

		fmt.Printf("| `%s` | %s | `%s` | %s |\n", fieldName, formatType(field.Type), def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	case reflect.Ptr:
		return "*" + formatType(t.Elem())
	default:
		return t.String()
	}
}

func printEnvVars() {
	envVars := []EnvVar{
		{"AVAULT_DATA", "Data directory for the wallet (config, accounts, credentials)", "avshell"},
		{"AVAULT_DEBUG", "Set to any value to enable debug logging", "avshell"},
		{"AVAULT_NO_MLOCK", "Set to any value to skip memory locking (for debugging)", "avshell"},
		{"AVDEVICE_DATA", "State directory for the device simulator (key, default socket)", "avdevice"},
	}

	fmt.Println("| Variable | Description | Used By |")
	fmt.Println("|----------|-------------|---------|")

	for _, env := range envVars {
		fmt.Printf("| `%s` | %s | %s |\n", env.Name, env.Description, env.UsedBy)
	}

	fmt.Println()
	fmt.Println("### Data Directory Resolution")
	fmt.Println()
	fmt.Println("**avshell:**")
	fmt.Println("- `-d <path>` flag, or")
	fmt.Println("- `AVAULT_DATA` environment variable, or")
	fmt.Println("- `~/.avault`")
	fmt.Println()
	fmt.Println("**avdevice:**")
	fmt.Println("- `-d <path>` flag, or")
	fmt.Println("- `AVDEVICE_DATA` environment variable, or")
	fmt.Println("- `~/.avdevice`")
}

func init() {
	// Ensure we exit cleanly
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		os.Exit(0)
	}
}
