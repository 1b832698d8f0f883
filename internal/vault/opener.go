package vault

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Opener shows a document to the user.
type Opener interface {
	Open(ctx context.Context, abs string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, abs string) error

func (f OpenerFunc) Open(ctx context.Context, abs string) error { return f(ctx, abs) }

// CommandOpener runs Command with the document path as its last argument.
type CommandOpener struct {
	Command string
	Args    []string
}

// DefaultOpener uses the platform's file launcher.
func DefaultOpener() CommandOpener {
	switch runtime.GOOS {
	case "darwin":
		return CommandOpener{Command: "open"}
	case "windows":
		return CommandOpener{Command: "cmd", Args: []string{"/c", "start", ""}}
	default:
		return CommandOpener{Command: "xdg-open"}
	}
}

func (o CommandOpener) Open(ctx context.Context, abs string) error {
	args := append(append([]string(nil), o.Args...), abs)
	out, err := exec.CommandContext(ctx, o.Command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", o.Command, abs, err, out)
	}
	return nil
}
