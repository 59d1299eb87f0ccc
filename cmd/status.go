package cmd

import (
	"context"
	"fmt"

	"github.com/meysamhadeli/codechat/constants/lipgloss"
	"github.com/meysamhadeli/codechat/utils"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the backend's current indexing status",
	Long: `The 'status' command asks the backend once for its indexing status and prints it,
together with the indexing statistics when the backend reports them.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies := handleRootCommand(cmd)
		defer rootDependencies.Session.Close()

		status, err := rootDependencies.Backend.IndexingStatus(context.Background())
		if err != nil {
			return err
		}

		style := lipgloss.Info
		switch {
		case status.Failed():
			style = lipgloss.Red
		case status.IsComplete():
			style = lipgloss.Green
		}
		fmt.Println(style.Render(utils.FormatIndexingStatus(status)))
		if stats := utils.FormatIndexingStats(status.Stats); stats != "" {
			fmt.Println(lipgloss.Gray.Render(stats))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
