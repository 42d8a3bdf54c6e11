package builtin

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestMatchesDangerousPattern_BlocksKnownDestructiveCommands(t *testing.T) {
	cases := []string{
		"rm -rf /",
		"RM -RF /",
		"sudo shutdown now",
		"mkfs.ext4 /dev/sda1",
		":(){:|:&};:",
	}
	for _, c := range cases {
		if blocked, _ := matchesDangerousPattern(c); !blocked {
			t.Errorf("expected %q to be blocked", c)
		}
	}
}

func TestMatchesDangerousPattern_KillInitRequiresWordBoundary(t *testing.T) {
	if blocked, _ := matchesDangerousPattern("kill -9 12345"); blocked {
		t.Error("kill -9 12345 should not be blocked (not targeting pid 1)")
	}
	if blocked, _ := matchesDangerousPattern("kill -9 1"); !blocked {
		t.Error("kill -9 1 should be blocked (targets init)")
	}
	if blocked, _ := matchesDangerousPattern("kill -9 12345; kill -9 1"); !blocked {
		t.Error("compound command ending in kill -9 1 should be blocked")
	}
}

func TestMatchesDangerousPattern_AllowsOrdinaryCommands(t *testing.T) {
	for _, c := range []string{"ls -la", "echo hello", "git status", "python3 script.py"} {
		if blocked, pattern := matchesDangerousPattern(c); blocked {
			t.Errorf("expected %q to be allowed, matched pattern %q", c, pattern)
		}
	}
}

func TestFilterEnv_StripsSecretsKeepsOthers(t *testing.T) {
	in := []string{"OPENAI_API_KEY=sk-secret", "DATABASE_URL=postgres://x", "PATH=/usr/bin", "HOME=/root"}
	out := filterEnv(in)
	joined := strings.Join(out, "\n")
	if strings.Contains(joined, "sk-secret") {
		t.Error("API key should have been filtered")
	}
	if strings.Contains(joined, "postgres://x") {
		t.Error("DATABASE_URL should have been filtered")
	}
	if !strings.Contains(joined, "PATH=/usr/bin") || !strings.Contains(joined, "HOME=/root") {
		t.Error("non-sensitive vars should survive filtering")
	}
}

func TestSafeRuneTruncate_PreservesShortString(t *testing.T) {
	if got := safeRuneTruncate("hello", 100); got != "hello" {
		t.Errorf("expected unchanged string, got %q", got)
	}
}

func TestSafeRuneTruncate_TruncatesLongStringWithMarker(t *testing.T) {
	long := strings.Repeat("a", 50)
	got := safeRuneTruncate(long, 10)
	if !strings.HasPrefix(got, strings.Repeat("a", 10)) {
		t.Errorf("expected truncated prefix, got %q", got)
	}
	if !strings.Contains(got, "truncated") {
		t.Errorf("expected truncation marker, got %q", got)
	}
}

func TestBashTool_RejectsDangerousCommandWithoutSpawningShell(t *testing.T) {
	bt := NewBashTool("")
	defer bt.Close()

	args, _ := json.Marshal(bashArgs{Command: "rm -rf /"})
	result, err := bt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("dangerous command should produce a failed result")
	}
	if bt.session != nil {
		t.Error("no shell session should have been started for a rejected command")
	}
}

func TestBashTool_RunsCommandAndReturnsOutput(t *testing.T) {
	bt := NewBashTool("")
	defer bt.Close()

	args, _ := json.Marshal(bashArgs{Command: "echo hello-bash"})
	result, err := bt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got failed result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello-bash") {
		t.Fatalf("expected output to contain echoed text, got %q", result.Content)
	}
	if result.Data["exit_code"] != 0 {
		t.Errorf("expected exit_code 0, got %v", result.Data["exit_code"])
	}
}

func TestBashTool_SessionPersistsWorkingDirectoryAcrossCalls(t *testing.T) {
	bt := NewBashTool("")
	defer bt.Close()

	mkArgs, _ := json.Marshal(bashArgs{Command: "cd /tmp && pwd"})
	if _, err := bt.Execute(context.Background(), mkArgs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pwdArgs, _ := json.Marshal(bashArgs{Command: "pwd"})
	result, err := bt.Execute(context.Background(), pwdArgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "/tmp") {
		t.Fatalf("expected working directory to persist as /tmp, got %q", result.Content)
	}
}

func TestBashTool_CommandOutputContainingSentinelPrefixUsesLastOccurrence(t *testing.T) {
	bt := NewBashTool("")
	defer bt.Close()

	// A command that itself prints text starting with the sentinel prefix
	// must not be mistaken for the real exit-code banner: only the last
	// occurrence on the stream is the real one the shell appended.
	args, _ := json.Marshal(bashArgs{Command: `echo 'fake,,,,shell-command-exit-999-banner,,,, junk'; echo done-marker`})
	result, err := bt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got failed result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "fake,,,,shell-command-exit-999-banner,,,, junk") {
		t.Fatalf("expected the fake banner line to survive in output, got %q", result.Content)
	}
	if !strings.Contains(result.Content, "done-marker") {
		t.Fatalf("expected output after the fake banner to survive, got %q", result.Content)
	}
	if result.Data["exit_code"] != 0 {
		t.Errorf("expected the real exit_code 0, got %v", result.Data["exit_code"])
	}
}

func TestBashTool_RestartClearsSession(t *testing.T) {
	bt := NewBashTool("")
	defer bt.Close()

	firstArgs, _ := json.Marshal(bashArgs{Command: "export FOO=bar"})
	if _, err := bt.Execute(context.Background(), firstArgs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restartArgs, _ := json.Marshal(bashArgs{Restart: true})
	result, err := bt.Execute(context.Background(), restartArgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("restart should succeed, got %q", result.Content)
	}

	checkArgs, _ := json.Marshal(bashArgs{Command: "echo ${FOO:-unset}"})
	checkResult, err := bt.Execute(context.Background(), checkArgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(checkResult.Content, "unset") {
		t.Fatalf("expected FOO to be unset after restart, got %q", checkResult.Content)
	}
}
