package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meysamhadeli/codechat/conversation/models"
	"gopkg.in/yaml.v3"
)

// Transcript is what /export writes.
type Transcript struct {
	Source     string            `json:"source" yaml:"source"`
	Model      string            `json:"model" yaml:"model"`
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	Turns      []models.ChatTurn `json:"turns" yaml:"turns"`
}

// WriteTranscript encodes the transcript as YAML, or JSON when format is "json".
func WriteTranscript(w io.Writer, transcript Transcript, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(transcript)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(transcript); err != nil {
		return err
	}
	return encoder.Close()
}

// ExportTranscript writes the transcript to path, picking the format from its extension.
func ExportTranscript(path string, transcript Transcript) error {
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create transcript file: %w", err)
	}
	defer file.Close()

	if err := WriteTranscript(file, transcript, format); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}
