package clipboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Mode string

const (
	ModeClipboardOnly Mode = "clipboard-only"
	ModeDirectInput   Mode = "direct-input"
	ModeBoth          Mode = "both"
)

var ErrUnknownMode = errors.New("unknown output mode")

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeClipboardOnly, "clipboard":
		return ModeClipboardOnly, nil
	case ModeDirectInput, "direct", "paste":
		return ModeDirectInput, nil
	case ModeBoth:
		return ModeBoth, nil
	default:
		return "", fmt.Errorf("%w %q (use clipboard-only, direct-input or both)", ErrUnknownMode, value)
	}
}

func (m Mode) String() string {
	return string(m)
}

// Paster types the clipboard contents into the focused window.
type Paster interface {
	Paste() error
}

const defaultSettle = 100 * time.Millisecond

// Dispatcher delivers final text according to an output Mode.
type Dispatcher struct {
	Clipboard Clipboard
	Paster    Paster
	// Settle is the pause around a simulated paste so the target window
	// reads the new clipboard before it is restored.
	Settle time.Duration
	Logger *zap.Logger
}

func NewDispatcher(cb Clipboard, paster Paster, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{Clipboard: cb, Paster: paster, Settle: defaultSettle, Logger: logger}
}

func (d *Dispatcher) Deliver(ctx context.Context, text string, mode Mode) error {
	switch mode {
	case ModeClipboardOnly, "":
		return writeWithTimeout(ctx, d.Clipboard, text)
	case ModeBoth:
		if err := writeWithTimeout(ctx, d.Clipboard, text); err != nil {
			return err
		}
		if err := d.wait(ctx); err != nil {
			return err
		}
		return d.paste()
	case ModeDirectInput:
		return d.directInput(ctx, text)
	default:
		return fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
}

// directInput pastes text and then puts the previous clipboard text back.
func (d *Dispatcher) directInput(ctx context.Context, text string) error {
	previous, readErr := d.Clipboard.ReadText()
	if readErr != nil {
		d.Logger.Debug("could not save clipboard before paste", zap.Error(readErr))
	}

	if err := writeWithTimeout(ctx, d.Clipboard, text); err != nil {
		return err
	}
	if err := d.wait(ctx); err != nil {
		return err
	}

	pasteErr := d.paste()
	if err := d.wait(ctx); err != nil {
		return errors.Join(pasteErr, err)
	}

	if readErr == nil {
		if err := writeWithTimeout(ctx, d.Clipboard, previous); err != nil {
			return errors.Join(pasteErr, fmt.Errorf("restore clipboard: %w", err))
		}
	}
	return pasteErr
}

func (d *Dispatcher) paste() error {
	if d.Paster == nil {
		return errors.New("direct input is not available on this system")
	}
	if err := d.Paster.Paste(); err != nil {
		return fmt.Errorf("simulate paste: %w", err)
	}
	return nil
}

func (d *Dispatcher) wait(ctx context.Context) error {
	if d.Settle <= 0 {
		return nil
	}
	timer := time.NewTimer(d.Settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
