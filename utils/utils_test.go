package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	backendModels "github.com/meysamhadeli/codechat/backend/models"
	"github.com/meysamhadeli/codechat/conversation/models"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func TestMarkdownStreamer_BuffersPartialLines(t *testing.T) {
	var out bytes.Buffer
	streamer := NewMarkdownStreamer(&out, "dracula")

	require.NoError(t, streamer.Write("Hel"))
	assert.Empty(t, out.String())
	require.NoError(t, streamer.Write("lo\nwor"))
	require.NoError(t, streamer.Write("ld"))
	require.NoError(t, streamer.Flush())

	assert.Equal(t, "Hello\nworld\n", stripANSI(out.String()))
}

func TestMarkdownStreamer_ColorsDiffLinesInCodeBlocks(t *testing.T) {
	var out bytes.Buffer
	streamer := NewMarkdownStreamer(&out, "dracula")

	require.NoError(t, streamer.Write("```diff\n+added line\n-removed line\n```\n+not a diff\n"))
	require.NoError(t, streamer.Flush())

	assert.Contains(t, out.String(), diffAdded+"+added line"+colorReset)
	assert.Contains(t, out.String(), diffRemoved+"-removed line"+colorReset)
	assert.NotContains(t, out.String(), diffAdded+"+not a diff")
	assert.Equal(t, "```diff\n+added line\n-removed line\n```\n+not a diff\n", stripANSI(out.String()))
}

func TestDetectLanguageFromCodeBlock(t *testing.T) {
	tests := map[string]string{
		"```go":            "go",
		"```Python":        "python",
		"```":              "plaintext",
		"```js {linenos}":  "js",
		"  ```typescript ": "typescript",
	}
	for fence, want := range tests {
		assert.Equal(t, want, DetectLanguageFromCodeBlock(fence), fence)
	}
}

func TestRenderFile_NumbersLines(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderFile(&out, "package main\n\nfunc main() {}\n", "", "main.go", "dracula"))

	lines := strings.Split(strings.TrimRight(stripANSI(out.String()), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1  package main", lines[0])
	assert.Equal(t, "3  func main() {}", lines[2])
}

func TestRenderFileTree(t *testing.T) {
	tree := backendModels.NewRootNode(map[string]*backendModels.FileTreeNode{
		"src": {Type: backendModels.NodeDirectory, Children: map[string]*backendModels.FileTreeNode{
			"app.py": {Type: backendModels.NodeFile, Path: "src/app.py", Language: "python"},
		}},
		"README.md": {Type: backendModels.NodeFile, Path: "README.md", Language: "markdown"},
	})

	rendered, err := RenderFileTree(tree, []string{"src/app.py"})
	require.NoError(t, err)
	plain := stripANSI(rendered)
	assert.Contains(t, plain, "src/")
	assert.Contains(t, plain, "app.py *")
	assert.Contains(t, plain, "README.md")
	assert.Less(t, strings.Index(plain, "src/"), strings.Index(plain, "README.md"))

	rendered, err = RenderFileTree(nil, nil)
	require.NoError(t, err)
	assert.Contains(t, stripANSI(rendered), "No file tree available")
}

func TestFormatIndexingStatus(t *testing.T) {
	boom := "Failed to clone repository"
	total, indexed := 12, 10

	assert.Equal(t, "Waiting for indexing status...", FormatIndexingStatus(nil))
	assert.Equal(t, "Indexing files (40%)", FormatIndexingStatus(&backendModels.IndexingStatus{IsIndexing: true, Progress: 40, Message: "Indexing files"}))
	assert.Equal(t, "Indexing failed: Failed to clone repository", FormatIndexingStatus(&backendModels.IndexingStatus{Error: &boom}))
	assert.Equal(t, "total: 12 | indexed: 10 | languages: go 7, python 3",
		FormatIndexingStats(backendModels.IndexingStats{
			TotalFiles:   &total,
			IndexedFiles: &indexed,
			ByLanguage:   map[string]int{"python": 3, "go": 7},
		}))
	assert.Empty(t, FormatIndexingStats(backendModels.IndexingStats{}))
}

func TestExportTranscript(t *testing.T) {
	transcript := Transcript{
		Source:     "https://github.com/acme/app",
		Model:      "deepseek-coder",
		ExportedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Turns: []models.ChatTurn{
			{ID: "u1", Role: models.RoleUser, Content: "what does main do?"},
			{ID: "a1", Role: models.RoleAssistant, Content: "It starts the server.", RelevantFiles: []string{"main.go"}},
		},
	}
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "chat.yml")
	require.NoError(t, ExportTranscript(yamlPath, transcript))
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "deepseek-coder", decoded["model"])
	assert.Len(t, decoded["turns"], 2)

	jsonPath := filepath.Join(dir, "chat.json")
	require.NoError(t, ExportTranscript(jsonPath, transcript))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.Contains(t, string(data), `"relevant_files": [`)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, pterm.LogLevelDebug, LevelFromString("DEBUG"))
	assert.Equal(t, pterm.LogLevelError, LevelFromString(" error "))
	assert.Equal(t, pterm.LogLevelDisabled, LevelFromString("off"))
	assert.Equal(t, pterm.LogLevelWarn, LevelFromString("verbose"))
}

func TestInputReader(t *testing.T) {
	reader := NewInputReader(strings.NewReader("  /tree  \nlast line"))
	reader.prompt = func() {}
	ctx := context.Background()

	first, err := reader.InputPromptWithContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/tree", first)

	second, err := reader.InputPromptWithContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "last line", second)

	_, err = reader.InputPromptWithContext(ctx)
	assert.ErrorIs(t, err, ErrInputClosed)
	_, err = reader.InputPromptWithContext(ctx)
	assert.ErrorIs(t, err, ErrInputClosed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewInputReader(strings.NewReader("")).InputPromptWithContext(cancelled)
	assert.Error(t, err)
}
