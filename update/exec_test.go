package update

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_PassesScriptOnStdin(t *testing.T) {
	requireShell(t)
	runner := NewExecRunner("sh", []string{"-c", "cat"}, time.Second*5)

	script := "server 10.1.1.1\nsend\n"
	stdout, stderr, err := runner.Run(context.Background(), script)
	if err != nil {
		t.Fatalf("Run() error = %v (stderr %q)", err, stderr)
	}
	if stdout != script {
		t.Errorf("stdout = %q, want %q", stdout, script)
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireShell(t)
	runner := NewExecRunner("sh", []string{"-c", "cat >/dev/null; echo partial; echo refused >&2; exit 2"}, 0)

	stdout, stderr, err := runner.Run(context.Background(), "send\n")
	if err == nil {
		t.Fatal("Run() error = nil, want exit status error")
	}
	if !strings.Contains(err.Error(), "status 2") {
		t.Errorf("Run() error = %v, want mention of status 2", err)
	}
	if strings.TrimSpace(stdout) != "partial" || strings.TrimSpace(stderr) != "refused" {
		t.Errorf("output not captured: stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	runner := NewExecRunner("/nonexistent/nsupdate", nil, 0)
	if _, _, err := runner.Run(context.Background(), "send\n"); err == nil {
		t.Error("Run() with missing binary should fail")
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)
	runner := NewExecRunner("sh", []string{"-c", "exec sleep 5"}, 100*time.Millisecond)

	start := time.Now()
	_, _, err := runner.Run(context.Background(), "")
	if err == nil {
		t.Fatal("Run() error = nil, want deadline error")
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("Run() took %v, timeout not enforced", time.Since(start))
	}
}

func TestNewExecRunner_DefaultBinary(t *testing.T) {
	if r := NewExecRunner("", nil, 0); r.Binary != "nsupdate" {
		t.Errorf("Binary = %q, want nsupdate", r.Binary)
	}
}
