package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"macroexp/internal/config"
	"macroexp/internal/driver"
	"macroexp/internal/macros"
)

// run executes the CLI with args and returns stdout and the error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--color", "off"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseSignature(t *testing.T) {
	sig, err := parseSignature(" [[-1],[-2,-1],[0]] ")
	if err != nil {
		t.Fatalf("parseSignature: %v", err)
	}
	if len(sig) != 3 || sig[1][0] != macros.Lifted || sig[2][0] != macros.Tag(0) {
		t.Fatalf("unexpected signature %v", sig)
	}
	for _, bad := range []string{"[[-3]]", "[-1]", "nope"} {
		if _, err := parseSignature(bad); err == nil {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}

func TestEncodeShowVerify(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "assert.mxb")
	out, err := run(t, "binding", "encode", "--class", "lib.Impls$", "--method", "assertImpl",
		"--sig", "[[-1],[-2],[0]]", "-o", good)
	if err != nil {
		t.Fatalf("encode: %v\n%s", err, out)
	}
	if !strings.Contains(out, "wrote "+good) {
		t.Fatalf("unexpected encode output %q", out)
	}

	out, err = run(t, "binding", "show", good)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"implementation  lib.Impls$.assertImpl", "signature       (Other)(Lifted)(Tag(0))", "tags            1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output lacks %q:\n%s", want, out)
		}
	}

	bad := filepath.Join(dir, "bad.mxb")
	if err := os.WriteFile(bad, []byte{0xc1}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err = run(t, "binding", "verify", good, bad)
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("verify should fail on the corrupt artifact: %v", err)
	}
	if !strings.Contains(out, "ok  lib.Impls$.assertImpl") || !strings.Contains(out, "FAIL") {
		t.Fatalf("unexpected verify output:\n%s", out)
	}
}

func TestListStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte("[store]\ndir = \"bindings\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := driver.OpenBindingStore(filepath.Join(dir, "bindings"))
	if err != nil {
		t.Fatalf("OpenBindingStore: %v", err)
	}
	if err := store.Put("lib.Macros.id", []byte{1}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := run(t, "--config", path, "binding", "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "(1)") || !strings.Contains(out, "  lib.Macros.id") {
		t.Fatalf("unexpected listing:\n%s", out)
	}

	out, err = run(t, "--config", path, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.HasPrefix(out, "# "+path) || !strings.Contains(out, "[store]") {
		t.Fatalf("unexpected config output:\n%s", out)
	}
}

func TestRenderVerifyAlignment(t *testing.T) {
	var buf bytes.Buffer
	results := []driver.ArtifactResult{
		{Path: "a.mxb", Binding: macros.Binding{ClassName: "A$", MethodName: "m"}},
		{Path: "longer.mxb", Binding: macros.Binding{ClassName: "B$", MethodName: "n"}},
	}
	if failed := renderVerify(&buf, results); failed != 0 {
		t.Fatalf("no failures expected")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || strings.Index(lines[0], "ok") != strings.Index(lines[1], "ok") {
		t.Fatalf("status column should be aligned:\n%s", buf.String())
	}
}
