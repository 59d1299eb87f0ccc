package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/meysamhadeli/codechat/constants/lipgloss"
	convModels "github.com/meysamhadeli/codechat/conversation/models"
	"github.com/meysamhadeli/codechat/utils"
	"github.com/pterm/pterm"
)

// streamPrinter paints conversation changes for the turn currently being answered.
type streamPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	markdown *utils.MarkdownStreamer
	awaiting bool
	turnID   string
	spinner  *pterm.SpinnerPrinter
}

func newStreamPrinter(out io.Writer, theme string) *streamPrinter {
	return &streamPrinter{out: out, markdown: utils.NewMarkdownStreamer(out, theme)}
}

// expect makes the next assistant placeholder the followed turn. The spinner
// keeps running until its first fragment arrives.
func (p *streamPrinter) expect(spinner *pterm.SpinnerPrinter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.awaiting = true
	p.turnID = ""
	p.spinner = spinner
}

// handle is subscribed to the conversation store.
func (p *streamPrinter) handle(change convModels.TurnChange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Placeholders are appended with no text; user turns never are.
	if p.awaiting && change.Kind == convModels.ChangeAppended && change.Text == "" {
		p.awaiting = false
		p.turnID = change.TurnID
		return
	}
	if p.turnID == "" || change.TurnID != p.turnID {
		return
	}

	switch change.Kind {
	case convModels.ChangeFragment:
		p.stopSpinner()
		if err := p.markdown.Write(change.Text); err != nil {
			fmt.Fprintln(p.out, lipgloss.Red.Render(fmt.Sprintf("error rendering answer: %v", err)))
		}
	case convModels.ChangeFailed:
		p.stopSpinner()
		_ = p.markdown.Flush()
		fmt.Fprintln(p.out, lipgloss.FailedTurn.Render(change.Text))
		p.turnID = ""
	case convModels.ChangeCompleted:
		p.stopSpinner()
		_ = p.markdown.Flush()
		p.turnID = ""
	}
}

// release stops following without waiting for the turn to settle.
func (p *streamPrinter) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopSpinner()
	_ = p.markdown.Flush()
	p.awaiting = false
	p.turnID = ""
}

func (p *streamPrinter) stopSpinner() {
	if p.spinner == nil {
		return
	}
	_ = p.spinner.Stop()
	fmt.Fprint(p.out, "\r")
	p.spinner = nil
}
