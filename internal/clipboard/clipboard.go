// Package clipboard copies text to the system clipboard using the
// platform's clipboard utility.
package clipboard

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// CopyText copies text to the system clipboard
func CopyText(text string) error {
	args, err := copyCommand(runtime.GOOS)
	if err != nil {
		return err
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// copyCommand picks the clipboard utility for goos.
func copyCommand(goos string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{"pbcopy"}, nil
	case "linux", "freebsd", "openbsd":
		// Try wl-copy first (Wayland)
		if _, err := lookPath("wl-copy"); err == nil {
			return []string{"wl-copy"}, nil
		}
		// Fall back to xclip, then xsel (X11)
		if _, err := lookPath("xclip"); err == nil {
			return []string{"xclip", "-selection", "clipboard"}, nil
		}
		if _, err := lookPath("xsel"); err == nil {
			return []string{"xsel", "--clipboard", "--input"}, nil
		}
		return nil, fmt.Errorf("no clipboard utility found (install wl-copy, xclip or xsel)")
	case "windows":
		return []string{"clip"}, nil
	default:
		return nil, fmt.Errorf("clipboard not supported on %s", goos)
	}
}
