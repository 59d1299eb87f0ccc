package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/meysamhadeli/codechat/backend/models"
	"github.com/meysamhadeli/codechat/constants/lipgloss"
	"github.com/meysamhadeli/codechat/session"
	"github.com/meysamhadeli/codechat/utils"
	"github.com/pterm/pterm"
)

var errNoSource = errors.New("nothing to load: pass --repo <url> or --dir <path>")

func newSpinner() *pterm.SpinnerPrinter {
	return pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).
		WithRemoveWhenDone(true)
}

// prepareSession connects to the model server, loads the configured source and
// blocks until indexing reaches READY or fails.
func prepareSession(ctx context.Context, rootDependencies *RootDependencies) error {
	if !rootDependencies.Config.HasSource() {
		return errNoSource
	}
	if err := connect(ctx, rootDependencies); err != nil {
		return err
	}
	return loadAndWait(ctx, rootDependencies)
}

func connect(ctx context.Context, rootDependencies *RootDependencies) error {
	spinnerConnect, _ := newSpinner().Start("Connecting to model server...")
	result, err := rootDependencies.Session.Connect(ctx, rootDependencies.Config.OllamaURL, rootDependencies.Config.Model)
	spinnerConnect.Stop()
	fmt.Print("\r")

	if err != nil {
		return err
	}
	if !result.Connected {
		return errors.New(connectionFailure(result))
	}

	message := result.Message
	if message == "" {
		message = fmt.Sprintf("Connected to %s", rootDependencies.Config.OllamaURL)
	}
	fmt.Println(lipgloss.Green.Render("✔ " + message))
	if len(result.AvailableModels) > 0 && !result.ModelAvailable(rootDependencies.Config.Model) {
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Model %s is not pulled on the server; available: %v",
			rootDependencies.Config.Model, result.AvailableModels)))
	}
	return nil
}

func connectionFailure(result *models.ConnectionResult) string {
	message := result.Message
	if result.Error != "" {
		message = result.Error
	}
	if message == "" {
		message = "model server not reachable"
	}
	if result.SuggestedModel != "" {
		message += fmt.Sprintf(" (try --model %s)", result.SuggestedModel)
	} else if len(result.AvailableModels) > 0 {
		message += fmt.Sprintf(" (available models: %v)", result.AvailableModels)
	}
	return message
}

func loadAndWait(ctx context.Context, rootDependencies *RootDependencies) error {
	sess := rootDependencies.Session

	outcome := make(chan session.Phase, 1)
	sess.OnPhase(func(from, to session.Phase) {
		if from != session.PhaseIndexing {
			return
		}
		select {
		case outcome <- to:
		default:
		}
	})

	bar, _ := pterm.DefaultProgressbar.
		WithTotal(100).
		WithTitle("Loading codebase...").
		WithRemoveWhenDone(true).
		Start()
	sess.OnStatus(func(status *models.IndexingStatus) {
		if bar == nil {
			return
		}
		bar.UpdateTitle(utils.FormatIndexingStatus(status))
		if delta := status.Progress - bar.Current; delta > 0 {
			bar.Add(delta)
		}
	})
	stopBar := func() {
		if bar != nil {
			_, _ = bar.Stop()
		}
	}

	var err error
	if rootDependencies.Config.RepoURL != "" {
		err = sess.LoadRepository(ctx, rootDependencies.Config.RepoURL, rootDependencies.Config.AuthToken)
	} else {
		err = sess.LoadDirectory(ctx, rootDependencies.Config.Directory)
	}
	if err != nil {
		stopBar()
		return err
	}

	select {
	case <-ctx.Done():
		stopBar()
		return ctx.Err()
	case phase := <-outcome:
		stopBar()
		if phase != session.PhaseReady {
			return fmt.Errorf("indexing failed: %s", sess.LastIndexingFailure())
		}
	}

	fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✔ %s is ready", sess.Source())))
	if status := sess.Status(); status != nil {
		fmt.Println(lipgloss.Gray.Render(utils.FormatIndexingStats(status.Stats)))
	}
	return nil
}
