package doctor

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"otterly/shutdown"
)

// terminalState is captured at startup so the tty can be put back after a
// keyboard hook test leaves it in a different mode.
var terminalState *term.State

func saveTerminal() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	if st, err := term.GetState(fd); err == nil {
		terminalState = st
	}
}

func resetTerminal() {
	if terminalState != nil {
		term.Restore(int(os.Stdin.Fd()), terminalState)
	}
}

func setupInterruptHandler() {
	ctx, stop := shutdown.Context(context.Background())
	go func() {
		<-ctx.Done()
		stop()
		resetTerminal()
		fmt.Println("\nInterrupted")
		os.Exit(1)
	}()
}
