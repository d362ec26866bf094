package nn

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-trainer")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecBackendLoadsWeights(t *testing.T) {
	// $3 is the --out path; the script echoes the row count into b2
	bin := writeScript(t, `rows=$(wc -l)
printf '{"b1":[0,0,0,0,0,0,0,0.5],"b2":%s}' "$rows" > "$3"
`)
	e := NewExec(bin, t.TempDir())
	if !e.Available() {
		t.Fatal("script should resolve")
	}
	m, err := e.Fit(context.Background(), separable(5), DefaultTrainOptions())
	if err != nil {
		t.Fatal(err)
	}
	if m.B2 != 5 || m.B1[7] != 0.5 {
		t.Fatalf("weights not loaded: b2=%v b1=%v", m.B2, m.B1)
	}
}

func TestExecBackendReportsFailure(t *testing.T) {
	bin := writeScript(t, "echo boom >&2\nexit 3\n")
	_, err := NewExec(bin, t.TempDir()).Fit(context.Background(), separable(3), DefaultTrainOptions())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected trainer output in error, got %v", err)
	}
}

func TestExecUnavailableFit(t *testing.T) {
	if _, err := NewExec("", "").Fit(context.Background(), separable(3), DefaultTrainOptions()); err != ErrUnavailable {
		t.Fatalf("got %v", err)
	}
}
