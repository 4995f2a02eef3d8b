package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Finding is one importable credential located during a scan. APIKey
// holds the real key; callers mask it before it leaves the process.
type Finding struct {
	Provider string `json:"provider"`
	Source   string `json:"source"`
	Location string `json:"location"`
	APIKey   string `json:"apiKey"`
}

// envSource maps one provider to the environment variables that
// conventionally carry its key.
type envSource struct {
	Provider string
	Vars     []string
}

var envSources = []envSource{
	{Provider: "openai", Vars: []string{"OPENAI_API_KEY"}},
	{Provider: "anthropic", Vars: []string{"ANTHROPIC_API_KEY"}},
	{Provider: "gemini", Vars: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}},
	{Provider: "mistral", Vars: []string{"MISTRAL_API_KEY"}},
	{Provider: "deepseek", Vars: []string{"DEEPSEEK_API_KEY"}},
	{Provider: "grok", Vars: []string{"XAI_API_KEY", "GROK_API_KEY"}},
}

// fileSource is a well-known config file another tool maintains that may
// hold a usable key.
type fileSource struct {
	Name     string
	Provider string
	Paths    []string // with ~ expansion, wildcards allowed
	Parser   func(path string) (string, error)
}

var fileSources = []fileSource{
	{
		Name:     "codex",
		Provider: "openai",
		Paths:    []string{"~/.codex/auth.json"},
		Parser:   parseCodexAuth,
	},
	{
		Name:     "gemini-cli",
		Provider: "gemini",
		Paths:    []string{"~/.gemini/.env"},
		Parser:   parseGeminiEnv,
	},
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// parseCodexAuth pulls the key out of the Codex CLI auth file.
func parseCodexAuth(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var auth struct {
		OpenAIAPIKey string `json:"OPENAI_API_KEY"`
	}
	if err := json.Unmarshal(data, &auth); err != nil {
		return "", fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return auth.OpenAIAPIKey, nil
}

// parseGeminiEnv reads the Gemini CLI dotenv file.
func parseGeminiEnv(path string) (string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return "", err
	}
	if key := vars["GEMINI_API_KEY"]; key != "" {
		return key, nil
	}
	return vars["GOOGLE_API_KEY"], nil
}
