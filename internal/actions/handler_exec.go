package actions

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// runCommand runs a process and returns its trimmed stdout. On failure the
// error carries stderr when there is any.
func runCommand(ctx context.Context, what string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return strings.TrimSpace(stdout.String()), fmt.Errorf("%s error: %s", what, msg)
		}
		return strings.TrimSpace(stdout.String()), fmt.Errorf("%s failed: %w", what, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ShellHandler runs shell commands: PowerShell on Windows, zsh on macOS when
// installed, bash otherwise
type ShellHandler struct{}

func (h *ShellHandler) IsSupported() bool {
	switch runtime.GOOS {
	case "windows", "darwin", "linux":
		return true
	}
	return false
}

func (h *ShellHandler) shell() (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command"}
	case "darwin":
		if _, err := exec.LookPath("zsh"); err == nil {
			return "/bin/zsh", []string{"-c"}
		}
	}
	return "/bin/bash", []string{"-c"}
}

func (h *ShellHandler) Execute(ctx context.Context, code string) (string, error) {
	if !h.IsSupported() {
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	name, args := h.shell()
	return runCommand(ctx, "shell", name, append(args, code)...)
}

// Validate parses the command with bash -n. PowerShell has no parse-only
// switch, so on Windows only obviously broken input is rejected.
func (h *ShellHandler) Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("empty command")
	}
	switch runtime.GOOS {
	case "windows":
		if strings.Contains(code, "\x00") {
			return fmt.Errorf("command contains null bytes")
		}
		return nil
	case "darwin", "linux":
		_, err := runCommand(context.Background(), "syntax check", "/bin/bash", "-n", "-c", code)
		return err
	}
	return nil
}

// AppleScriptHandler runs AppleScript through osascript, macOS only
type AppleScriptHandler struct{}

func (h *AppleScriptHandler) IsSupported() bool {
	return runtime.GOOS == "darwin"
}

func (h *AppleScriptHandler) Execute(ctx context.Context, code string) (string, error) {
	if !h.IsSupported() {
		return "", fmt.Errorf("AppleScript is only supported on macOS")
	}
	return runCommand(ctx, "AppleScript", "osascript", "-e", code)
}

func (h *AppleScriptHandler) Validate(code string) error {
	if !h.IsSupported() {
		return fmt.Errorf("AppleScript validation only available on macOS")
	}
	_, err := runCommand(context.Background(), "syntax check", "osacompile", "-o", "/dev/null", "-e", code)
	return err
}
