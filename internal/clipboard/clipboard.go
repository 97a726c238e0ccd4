package clipboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard available")

const copyTimeout = 4 * time.Second

// Clipboard reads and writes the system text clipboard.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(value string) error
}

// SystemClipboard is backed by the platform clipboard tools (pbcopy,
// wl-copy, xclip, xsel) or the Windows API.
type SystemClipboard struct{}

func (SystemClipboard) ReadText() (string, error) {
	if clipboard.Unsupported {
		return "", ErrUnavailable
	}
	value, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return value, nil
}

func (SystemClipboard) WriteText(value string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if err := clipboard.WriteAll(value); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// writeWithTimeout gives up after copyTimeout when the clipboard tool hangs.
func writeWithTimeout(ctx context.Context, cb Clipboard, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cb.WriteText(value)
	}()

	select {
	case err := <-done:
		return err
	case <-copyCtx.Done():
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		return copyCtx.Err()
	}
}
