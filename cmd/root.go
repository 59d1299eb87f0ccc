package cmd

import (
	"fmt"
	"os"

	"github.com/meysamhadeli/codechat/backend"
	"github.com/meysamhadeli/codechat/config"
	"github.com/meysamhadeli/codechat/constants/lipgloss"
	"github.com/meysamhadeli/codechat/file_cache"
	"github.com/meysamhadeli/codechat/session"
	"github.com/meysamhadeli/codechat/token_management"
	"github.com/meysamhadeli/codechat/token_management/contracts"
	"github.com/meysamhadeli/codechat/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// RootDependencies is everything a subcommand needs, built once from the loaded config.
type RootDependencies struct {
	Config          *config.Config
	Session         *session.Session
	Backend         *backend.BackendClient
	TokenManagement contracts.ITokenManagement
	Cache           *file_cache.CacheManager
	Logger          *pterm.Logger
	Cwd             string
}

var rootCmd = &cobra.Command{
	Use:           "codechat",
	SilenceErrors: true,
	Short:         "Chat with an indexed codebase from the terminal.",
	Long: `codechat connects to a code-analysis backend, loads a repository or directory,
follows its indexing to completion and then answers questions about the code,
streaming each answer as it is generated.`,
	Run: func(cmd *cobra.Command, args []string) {
		if version, _ := cmd.Flags().GetBool("version"); version {
			rootDependencies := handleRootCommand(cmd)
			defer rootDependencies.Session.Close()
			fmt.Println(lipgloss.Green.Render(fmt.Sprintf("codechat version %s", rootDependencies.Config.Version)))
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	config.InitFlags(rootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		os.Exit(1)
	}
}

func handleRootCommand(cmd *cobra.Command) *RootDependencies {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("error getting current directory: %v", err)))
		os.Exit(1)
	}

	rootDependencies := &RootDependencies{Cwd: cwd}
	rootDependencies.Config = config.LoadConfigs(cmd.Root(), cwd)
	rootDependencies.Logger = utils.NewLogger(os.Stderr, rootDependencies.Config.LogLevel)

	rootDependencies.Backend = backend.NewBackendClient(&backend.BackendConfig{
		BaseURL:        rootDependencies.Config.BackendURL,
		RequestTimeout: rootDependencies.Config.RequestTimeout,
	})
	rootDependencies.TokenManagement = token_management.NewTokenManager()
	rootDependencies.Cache = file_cache.NewCacheManager(rootDependencies.Config.CacheMaxEntries)

	rootDependencies.Session = session.New(session.Options{
		Backend:         rootDependencies.Backend,
		Logger:          rootDependencies.Logger,
		PollInterval:    rootDependencies.Config.PollInterval,
		Tokens:          rootDependencies.TokenManagement,
		Cache:           rootDependencies.Cache,
		DisableFollowUp: !rootDependencies.Config.FollowUpRelevance,
	})

	rootDependencies.Logger.Debug("configuration loaded", rootDependencies.Logger.Args(
		"backend_url", rootDependencies.Config.BackendURL,
		"model", rootDependencies.Config.Model,
		"poll_interval", rootDependencies.Config.PollInterval,
	))
	return rootDependencies
}
