package main

import (
	"bytes"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/wesm/braindump/internal/braindumperr"
)

// copyToClipboard shells out to the platform clipboard utility.
// Clipboard integration is an external collaborator (spec.md §1):
// braindump does not carry its own clipboard library, it drives
// whatever the host already provides.
func copyToClipboard(text string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("pbcopy")
	case "windows":
		c = exec.Command("clip")
	default:
		c = exec.Command("xclip", "-selection", "clipboard")
	}
	c.Stdin = bytes.NewBufferString(text)
	return c.Run()
}

// launchTarget invokes the target tool with text as its argument, or,
// for text that doesn't fit a command-line argument comfortably,
// with a short pointer to referencePath instead. The subprocess
// integration is the external collaborator; braindump only decides
// what to hand it per the launcher contract.
func launchTarget(target, text, referencePath string, isReference bool) error {
	arg := text
	if isReference {
		arg = fmt.Sprintf("Read %s and resume the session described there.", referencePath)
	}
	c := exec.Command(target, arg)
	if err := c.Start(); err != nil {
		return fmt.Errorf("%w: %v", braindumperr.ErrLaunchFailure, err)
	}
	return nil
}
