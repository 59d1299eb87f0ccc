package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meysamhadeli/codechat/constants/lipgloss"
	"github.com/meysamhadeli/codechat/session"
	"github.com/meysamhadeli/codechat/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// chatCmd: codechat chat
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Load a codebase and chat with it in an interactive session.",
	Long: `The 'chat' subcommand connects to the model server, loads the repository (--repo) or
directory (--dir), follows indexing with a progress bar and then opens an interactive
session. Plain input asks a question and streams the answer; slash commands browse the
indexed codebase. Ctrl+C stops the answer being streamed, and exits at the prompt.`,
	Run: func(cmd *cobra.Command, args []string) {
		rootDependencies := handleRootCommand(cmd)
		defer rootDependencies.Session.Close()

		if err := handleChatCommand(rootDependencies); err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func handleChatCommand(rootDependencies *RootDependencies) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	setupCtx, stopSetup := signal.NotifyContext(ctx, os.Interrupt)
	err := prepareSession(setupCtx, rootDependencies)
	stopSetup()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println(lipgloss.Yellow.Render("\n🔄 Exiting..."))
			return nil
		}
		return err
	}

	printer := newStreamPrinter(os.Stdout, rootDependencies.Config.Theme)
	rootDependencies.Session.Conversation().Subscribe(printer.handle)

	c := &chatContext{rootDependencies: rootDependencies, printer: printer, out: os.Stdout}
	reader := utils.NewInputReader(os.Stdin)

	fmt.Println(lipgloss.BoxStyle.Render("/help  Help for chat subcommands"))

	for {
		promptCtx, stopPrompt := signal.NotifyContext(ctx, os.Interrupt)
		userInput, err := reader.InputPromptWithContext(promptCtx)
		stopPrompt()

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, utils.ErrInputClosed) {
				fmt.Println(lipgloss.Yellow.Render("\n🔄 Exiting..."))
				return nil
			}
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
			continue
		}

		if userInput == "" {
			fmt.Print("\r")
			continue
		}

		if _, _, isCommand := parseSlashCommand(userInput); isCommand {
			err = runChatCommand(ctx, c, userInput)
		} else {
			err = runQuery(ctx, c, userInput, false)
		}

		if errors.Is(err, errExitChat) {
			return nil
		}
		if err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// runQuery streams one answer to the terminal. Ctrl+C cancels the answer, not the session.
func runQuery(ctx context.Context, c *chatContext, text string, suggest bool) error {
	sess := c.rootDependencies.Session

	aiSpinner := pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("🤔", "🧠", "💭", "✨", "🚀", "💡").
		WithDelay(1000).
		WithRemoveWhenDone(true)
	spinnerAI, _ := aiSpinner.Start(fmt.Sprintf("%s is thinking...", sess.Model()))
	c.printer.expect(spinnerAI)

	interruptCtx, stopInterrupt := signal.NotifyContext(ctx, os.Interrupt)
	defer stopInterrupt()

	var query *session.QuerySession
	var err error
	if suggest {
		query, err = sess.Suggest(ctx, text)
	} else {
		query, err = sess.Submit(ctx, text)
	}
	if err != nil {
		c.printer.release()
		return err
	}

	if err := query.Wait(interruptCtx); err != nil {
		query.Cancel()
		<-query.Done()
	}
	c.printer.release()

	switch query.State() {
	case session.QueryCancelled:
		fmt.Fprintln(c.out, lipgloss.Yellow.Render("\n⏹ Answer stopped."))
	case session.QueryCompleted:
		if turn, ok := sess.Conversation().Turn(query.TurnID()); ok && len(turn.RelevantFiles) > 0 {
			fmt.Fprintln(c.out)
			printRelevantFiles(c.out, turn.RelevantFiles)
		}
	}

	fmt.Fprintln(c.out)
	c.rootDependencies.TokenManagement.DisplayTokens(sess.Model())
	return nil
}
