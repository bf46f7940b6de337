package ui

import (
	"os/exec"
	"runtime"
)

// Notify sends a desktop notification through osascript on macOS or
// notify-send elsewhere. Fails silently if neither is available.
func Notify(title, message string) {
	switch runtime.GOOS {
	case "darwin":
		script := `display notification "` + escapeAppleScript(message) + `" with title "` + escapeAppleScript(title) + `"`
		_ = exec.Command("osascript", "-e", script).Run()
	case "linux", "freebsd":
		if path, err := exec.LookPath("notify-send"); err == nil {
			_ = exec.Command(path, "--app-name=kyber", title, message).Run()
		}
	}
}

func escapeAppleScript(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
