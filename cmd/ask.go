package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/meysamhadeli/codechat/constants/lipgloss"
	"github.com/meysamhadeli/codechat/session"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question about a codebase and print the streamed answer",
	Long: `Ask one question about a codebase and print the streamed answer.
The codebase given by --repo or --dir is loaded and indexed first; the command exits once
the answer and its relevant files have been printed.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunAsk(cmd, args)
	},
}

func init() {
	askCmd.Flags().Bool("suggest", false, "Ask for code changes instead of an explanation")
	rootCmd.AddCommand(askCmd)
}

func RunAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	suggest, _ := cmd.Flags().GetBool("suggest")

	rootDependencies := handleRootCommand(cmd)
	defer rootDependencies.Session.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	setupCtx, stopSetup := signal.NotifyContext(ctx, os.Interrupt)
	err := prepareSession(setupCtx, rootDependencies)
	stopSetup()
	if err != nil {
		return err
	}

	printer := newStreamPrinter(os.Stdout, rootDependencies.Config.Theme)
	rootDependencies.Session.Conversation().Subscribe(printer.handle)
	c := &chatContext{rootDependencies: rootDependencies, printer: printer, out: os.Stdout}

	if err := runQuery(ctx, c, question, suggest); err != nil {
		return err
	}

	active := rootDependencies.Session.ActiveQuery()
	if active != nil && active.State() == session.QueryFailed {
		if queryErr := active.Err(); queryErr != nil {
			return fmt.Errorf("query failed: %w", queryErr)
		}
		return errors.New("query failed")
	}
	if active != nil && active.State() == session.QueryCancelled {
		fmt.Println(lipgloss.Yellow.Render("Answer incomplete."))
	}
	return nil
}
