package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plantsim/internal/validation"
)

func TestRunUsage(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"validate_module_patterns"}, &stderr, nil); code == 0 {
		t.Fatalf("expected non-zero exit code without a validator")
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Fatalf("expected usage message, got %q", stderr.String())
	}
}

func TestRunSuccessOnModuleTree(t *testing.T) {
	var stderr bytes.Buffer
	dirs := []string{
		filepath.Join("..", "internal", "modules", "pressurizer"),
		filepath.Join("..", "internal", "modules", "facade"),
	}
	code := run(append([]string{"validate_module_patterns"}, dirs...), &stderr, validation.ValidateModuleDirectory)
	if code != 0 {
		t.Fatalf("expected module tree to be clean, got %d: %s", code, stderr.String())
	}
	if stderr.Len() != 0 {
		t.Fatalf("expected no stderr output, got %q", stderr.String())
	}
}

func TestRunReportsViolations(t *testing.T) {
	dir := t.TempDir()
	src := "package bad\n\nimport \"plantsim/internal/legacy\"\n\nvar _ = legacy.New\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	var stderr bytes.Buffer
	if code := run([]string{"validate_module_patterns", dir}, &stderr, validation.ValidateModuleDirectory); code == 0 {
		t.Fatalf("expected failure for a module importing the legacy engine")
	}
	out := stderr.String()
	if !strings.Contains(out, "module boundary violations") || !strings.Contains(out, "bad.go") {
		t.Fatalf("expected violation details, got %q", out)
	}
}

func TestRunMissingDirectory(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{"validate_module_patterns", filepath.Join(t.TempDir(), "missing")}, &stderr, func(string) []validation.Error {
		t.Fatalf("validator must not run for a missing directory")
		return nil
	})
	if code != 1 || !strings.Contains(stderr.String(), "Module directory") {
		t.Fatalf("expected missing directory error, got %d %q", code, stderr.String())
	}
}

func TestRunErrorHandling(t *testing.T) {
	tests := []struct {
		name      string
		validator func(string) []validation.Error
		wantExit  int
		wantOut   string
	}{
		{name: "clean", validator: func(string) []validation.Error { return nil }, wantExit: 0},
		{
			name: "single violation",
			validator: func(string) []validation.Error {
				return []validation.Error{{File: "a.go", Line: 3, Message: "raw signal", Code: `"surge_flow"`}}
			},
			wantExit: 1,
			wantOut:  "Code: \"surge_flow\"",
		},
		{
			name: "violation without code",
			validator: func(string) []validation.Error {
				return []validation.Error{{File: "b.go", Message: "Failed to parse"}}
			},
			wantExit: 1,
			wantOut:  "Failed to parse",
		},
	}
	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if code := run([]string{"cmd", dir}, &stderr, tt.validator); code != tt.wantExit {
				t.Fatalf("exit code = %d, want %d", code, tt.wantExit)
			}
			if tt.wantOut != "" && !strings.Contains(stderr.String(), tt.wantOut) {
				t.Fatalf("output should contain %q, got %q", tt.wantOut, stderr.String())
			}
		})
	}
}

func TestRunFailedWriter(t *testing.T) {
	code := run([]string{"cmd", t.TempDir()}, failingWriter{}, func(string) []validation.Error {
		return []validation.Error{{File: "x.go", Line: 1, Message: "m"}}
	})
	if code != 1 {
		t.Fatalf("expected exit code 1 when writer fails, got %d", code)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, bytes.ErrTooLarge }
