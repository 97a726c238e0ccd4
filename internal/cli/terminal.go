package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

var ErrInteractiveRequiresTTY = errors.New("interactive recording requires terminal input")

func (a *appState) stdinIsTerminal() bool {
	if a.isTerminal != nil {
		return a.isTerminal()
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// waitForEnter prints message and blocks until a line arrives on stdin. The
// reader is shared so input typed ahead is not lost between calls.
func (a *appState) waitForEnter(message string) error {
	if !a.stdinIsTerminal() {
		return ErrInteractiveRequiresTTY
	}

	if message != "" {
		if _, err := fmt.Fprintln(a.errWriter(), message); err != nil {
			return err
		}
	}

	if a.stdin == nil {
		in := a.in
		if in == nil {
			in = os.Stdin
		}
		a.stdin = bufio.NewReader(in)
	}
	_, err := a.stdin.ReadString('\n')
	return err
}
