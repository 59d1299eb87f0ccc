package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/meysamhadeli/codechat/constants/lipgloss"
	convModels "github.com/meysamhadeli/codechat/conversation/models"
	"github.com/meysamhadeli/codechat/utils"
	"github.com/pterm/pterm"
)

var errExitChat = errors.New("exit requested")

// staleCacheAge is how old a cached file must be for /cache prune to drop it.
const staleCacheAge = 30 * time.Minute

// chatContext is what a slash command can reach.
type chatContext struct {
	rootDependencies *RootDependencies
	printer          *streamPrinter
	out              io.Writer
}

type chatCommand struct {
	name        string
	args        string
	description string
	run         func(ctx context.Context, c *chatContext, arg string) error
}

var chatCommands []chatCommand

func init() {
	chatCommands = []chatCommand{
		{name: "/help", description: "Help for chat subcommands", run: runHelp},
		{name: "/tree", description: "Show the indexed file tree", run: runTree},
		{name: "/open", args: "<path>", description: "Show a file with syntax highlighting", run: runOpen},
		{name: "/files", description: "List the files relevant to the last answer", run: runFiles},
		{name: "/search", args: "<term>", description: "Search the codebase", run: runSearch},
		{name: "/related", args: "<path>", description: "Show what a file imports and what imports it", run: runRelated},
		{name: "/summary", description: "Summarize the indexed codebase", run: runSummary},
		{name: "/analyze", description: "Ask the model for a whole-codebase analysis", run: runAnalyze},
		{name: "/suggest", args: "<request>", description: "Ask for code changes", run: runSuggest},
		{name: "/model", args: "[name]", description: "Show or switch the model", run: runModel},
		{name: "/history", description: "Show the conversation so far", run: runHistory},
		{name: "/export", args: "<file>", description: "Export the conversation (.yaml or .json)", run: runExport},
		{name: "/token", args: "[clear]", description: "Token information, or reset the counters", run: runToken},
		{name: "/cache", args: "[clear|prune]", description: "Show the file cache, clear it, or drop stale entries", run: runCache},
		{name: "/clear", description: "Clear screen", run: runClear},
		{name: "/exit", description: "Exit from codechat", run: func(context.Context, *chatContext, string) error { return errExitChat }},
	}
}

// parseSlashCommand splits "/name rest of line" into its name and argument.
func parseSlashCommand(input string) (name string, arg string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

func findChatCommand(name string) (chatCommand, bool) {
	for _, command := range chatCommands {
		if command.name == name {
			return command, true
		}
	}
	return chatCommand{}, false
}

// runChatCommand executes a slash command; errExitChat asks the loop to stop.
func runChatCommand(ctx context.Context, c *chatContext, input string) error {
	name, arg, _ := parseSlashCommand(input)
	command, ok := findChatCommand(name)
	if !ok {
		return fmt.Errorf("unknown command %s, type /help for the list", name)
	}
	if strings.HasPrefix(command.args, "<") && arg == "" {
		return fmt.Errorf("usage: %s %s", command.name, command.args)
	}
	return command.run(ctx, c, arg)
}

func runHelp(_ context.Context, c *chatContext, _ string) error {
	var helps []string
	for _, command := range chatCommands {
		usage := command.name
		if command.args != "" {
			usage += " " + command.args
		}
		helps = append(helps, fmt.Sprintf("%-18s %s", usage, command.description))
	}
	fmt.Fprintln(c.out, lipgloss.BoxStyle.Render(strings.Join(helps, "\n")))
	return nil
}

func runClear(_ context.Context, c *chatContext, _ string) error {
	fmt.Fprint(c.out, "\033[2J\033[H")
	return nil
}

func runTree(_ context.Context, c *chatContext, _ string) error {
	var highlight []string
	if last, ok := c.rootDependencies.Session.Conversation().LastAssistant(); ok {
		highlight = last.RelevantFiles
	}
	tree, err := utils.RenderFileTree(c.rootDependencies.Session.FileTree(), highlight)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, tree)
	return nil
}

func runOpen(ctx context.Context, c *chatContext, path string) error {
	if tree := c.rootDependencies.Session.FileTree(); tree != nil {
		if _, found := tree.Find(path); !found {
			fmt.Fprintln(c.out, lipgloss.Yellow.Render(fmt.Sprintf("%s is not in the indexed tree, asking the backend anyway", path)))
		}
	}
	content, err := c.rootDependencies.Session.OpenFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, lipgloss.BlueSky.Render(content.Path))
	return utils.RenderFile(c.out, content.Content, content.Language, content.Path, c.rootDependencies.Config.Theme)
}

func runFiles(_ context.Context, c *chatContext, _ string) error {
	last, ok := c.rootDependencies.Session.Conversation().LastAssistant()
	if !ok || len(last.RelevantFiles) == 0 {
		fmt.Fprintln(c.out, lipgloss.Yellow.Render("No relevant files yet."))
		return nil
	}
	printRelevantFiles(c.out, last.RelevantFiles)
	return nil
}

func printRelevantFiles(out io.Writer, files []string) {
	fmt.Fprintln(out, lipgloss.Info.Render("Relevant files:"))
	for _, file := range files {
		fmt.Fprintf(out, "  %s\n", lipgloss.Green.Render(file))
	}
}

func runSearch(ctx context.Context, c *chatContext, term string) error {
	results, err := c.rootDependencies.Session.Search(ctx, term)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(c.out, lipgloss.Yellow.Render(fmt.Sprintf("No matches for %q.", term)))
		return nil
	}

	files := make([]string, 0, len(results))
	for file := range results {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Fprintln(c.out, lipgloss.BlueSky.Render(file))
		for _, match := range results[file] {
			fmt.Fprintf(c.out, "  %s %s\n", lipgloss.Gray.Render(fmt.Sprintf("%5d", match.LineNumber)), strings.TrimSpace(match.Line))
		}
	}
	return nil
}

func runRelated(ctx context.Context, c *chatContext, path string) error {
	related, err := c.rootDependencies.Session.RelatedFiles(ctx, path)
	if err != nil {
		return err
	}

	root := pterm.TreeNode{Text: lipgloss.BlueSky.Render(related.File)}
	for _, group := range []struct {
		title string
		files []string
	}{
		{"imports", related.Imports},
		{"imported by", related.ImportedBy},
	} {
		node := pterm.TreeNode{Text: fmt.Sprintf("%s (%d)", group.title, len(group.files))}
		for _, file := range group.files {
			node.Children = append(node.Children, pterm.TreeNode{Text: file})
		}
		root.Children = append(root.Children, node)
	}

	rendered, err := pterm.DefaultTree.WithRoot(root).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, rendered)
	return nil
}

func runSummary(ctx context.Context, c *chatContext, _ string) error {
	summary, err := c.rootDependencies.Session.CodebaseSummary(ctx)
	if err != nil {
		return err
	}

	languages := make([]string, 0, len(summary.Languages))
	for language := range summary.Languages {
		languages = append(languages, language)
	}
	sort.Slice(languages, func(i, j int) bool {
		if summary.Languages[languages[i]] != summary.Languages[languages[j]] {
			return summary.Languages[languages[i]] > summary.Languages[languages[j]]
		}
		return languages[i] < languages[j]
	})

	data := pterm.TableData{{"Language", "Files"}}
	for _, language := range languages {
		data = append(data, []string{language, fmt.Sprint(summary.Languages[language])})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, lipgloss.Info.Render(fmt.Sprintf("Total files: %d", summary.TotalFiles)))
	fmt.Fprintln(c.out, table)
	fmt.Fprintln(c.out, lipgloss.Gray.Render(fmt.Sprintf("Relationships: %d imports, %d references",
		summary.FileRelationships.Imports, summary.FileRelationships.References)))
	return nil
}

func runAnalyze(ctx context.Context, c *chatContext, _ string) error {
	spinnerAnalyze, _ := newSpinner().Start("Analyzing codebase...")
	result, err := c.rootDependencies.Session.AnalyzeCodebase(ctx)
	_ = spinnerAnalyze.Stop()
	fmt.Fprint(c.out, "\r")
	if err != nil {
		return err
	}

	markdown := utils.NewMarkdownStreamer(c.out, c.rootDependencies.Config.Theme)
	if err := markdown.Write(result.Response); err != nil {
		return err
	}
	if err := markdown.Flush(); err != nil {
		return err
	}
	if len(result.RelevantFiles) > 0 {
		printRelevantFiles(c.out, result.RelevantFiles)
	}
	c.rootDependencies.TokenManagement.DisplayTokens(c.rootDependencies.Session.Model())
	return nil
}

func runSuggest(ctx context.Context, c *chatContext, request string) error {
	return runQuery(ctx, c, request, true)
}

func runModel(ctx context.Context, c *chatContext, model string) error {
	if model == "" {
		fmt.Fprintln(c.out, lipgloss.Info.Render(fmt.Sprintf("Current model: %s", c.rootDependencies.Session.Model())))
		return nil
	}
	if err := c.rootDependencies.Session.SetModel(ctx, model); err != nil {
		return err
	}
	fmt.Fprintln(c.out, lipgloss.Green.Render(fmt.Sprintf("✔ Model set to %s", model)))
	return nil
}

func runHistory(_ context.Context, c *chatContext, _ string) error {
	turns := c.rootDependencies.Session.Conversation().Turns()
	if len(turns) == 0 {
		fmt.Fprintln(c.out, lipgloss.Yellow.Render("No conversation yet."))
		return nil
	}
	for _, turn := range turns {
		label := lipgloss.BlueSky.Render("you")
		if turn.Role == convModels.RoleAssistant {
			label = lipgloss.Green.Render("assistant")
		}
		content := turn.Content
		switch {
		case turn.Failed:
			content = lipgloss.Red.Render(content)
		case turn.IsLoading:
			content += lipgloss.Gray.Render(" …")
		}
		fmt.Fprintf(c.out, "%s %s %s\n", lipgloss.Gray.Render(turn.Timestamp.Format("15:04:05")), label, summarizeLine(content, 120))
	}
	return nil
}

func summarizeLine(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "…"
}

func runExport(_ context.Context, c *chatContext, path string) error {
	sess := c.rootDependencies.Session
	transcript := utils.Transcript{
		Source:     sess.Source(),
		Model:      sess.Model(),
		ExportedAt: time.Now(),
		Turns:      sess.Conversation().Turns(),
	}
	if err := utils.ExportTranscript(path, transcript); err != nil {
		return err
	}
	fmt.Fprintln(c.out, lipgloss.Green.Render(fmt.Sprintf("✔ Conversation exported to %s", path)))
	return nil
}

func runToken(_ context.Context, c *chatContext, arg string) error {
	switch arg {
	case "":
	case "clear":
		c.rootDependencies.TokenManagement.ClearToken()
		fmt.Fprintln(c.out, lipgloss.Green.Render("✓ Token counters reset"))
		return nil
	default:
		return fmt.Errorf("usage: /token [clear]")
	}
	fmt.Fprintln(c.out, lipgloss.BoxStyle.Render(c.rootDependencies.TokenManagement.TokenSummary(c.rootDependencies.Session.Model())))
	return nil
}

func runCache(_ context.Context, c *chatContext, arg string) error {
	cache := c.rootDependencies.Session.Cache()
	if arg == "clear" {
		cache.Clear()
		cache.ResetPerformanceStats()
		fmt.Fprintln(c.out, lipgloss.Green.Render("✓ File cache has been cleared!"))
		return nil
	}
	if arg == "prune" {
		removed := cache.CleanExpiredCache(staleCacheAge)
		fmt.Fprintln(c.out, lipgloss.Green.Render(fmt.Sprintf("✓ Removed %d stale cache entries", removed)))
		return nil
	}
	if arg != "" {
		return fmt.Errorf("usage: /cache [clear|prune]")
	}

	cacheStats := cache.GetCacheStats()
	performance := cache.GetPerformanceStats()

	fmt.Fprintln(c.out, lipgloss.Info.Render("Cache Statistics:"))
	if files, ok := cacheStats["cache_files"].(int); ok {
		fmt.Fprintf(c.out, "  Cached Files: %d / %v\n", files, cacheStats["max_entries"])
	}
	if sizeKB, ok := cacheStats["total_size_kb"].(float64); ok {
		fmt.Fprintf(c.out, "  Total Size: %.1f KB\n", sizeKB)
	}
	if hitRate, ok := performance["hit_rate_percent"].(float64); ok {
		fmt.Fprintf(c.out, "  Hit Rate: %.1f%%\n", hitRate)
	}
	fmt.Fprintf(c.out, "  Requests: %v (hits %v, misses %v, evictions %v)\n",
		performance["total_requests"], performance["cache_hits"], performance["cache_misses"], performance["evictions"])
	return nil
}
