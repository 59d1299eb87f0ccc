package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/codechat/constants/lipgloss"
)

// ErrInputClosed is returned when stdin reaches EOF.
var ErrInputClosed = errors.New("input closed")

// InputReader prompts for lines without losing input across cancelled prompts.
// A single goroutine owns the underlying reader; a prompt cancelled by ctx
// leaves its pending line for the next prompt.
type InputReader struct {
	lines  chan string
	errs   chan error
	prompt func()
}

// NewInputReader starts reading lines from r.
func NewInputReader(r io.Reader) *InputReader {
	ir := &InputReader{
		lines:  make(chan string),
		errs:   make(chan error, 1),
		prompt: func() { fmt.Print(lipgloss.BlueSky.Render("> ")) },
	}
	go ir.readLoop(bufio.NewReader(r))
	return ir
}

func (ir *InputReader) readLoop(reader *bufio.Reader) {
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			ir.lines <- strings.TrimSpace(line)
		}
		if err != nil {
			if err == io.EOF {
				ir.errs <- ErrInputClosed
			} else {
				ir.errs <- fmt.Errorf("error reading input: %w", err)
			}
			return
		}
	}
}

// InputPromptWithContext prompts the user with context cancellation support
func (ir *InputReader) InputPromptWithContext(ctx context.Context) (string, error) {
	ir.prompt()

	select {
	case <-ctx.Done():
		fmt.Println()
		return "", ctx.Err()
	case input := <-ir.lines:
		return input, nil
	case err := <-ir.errs:
		// Keep reporting the terminal error to later prompts.
		ir.errs <- err
		return "", err
	}
}
