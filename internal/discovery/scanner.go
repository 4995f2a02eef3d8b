// Package discovery locates API keys the user already has lying around:
// provider environment variables and the config files of neighbouring
// CLI tools. Findings are offered for import, never stored or validated
// here; keys are masked before any finding leaves the process.
package discovery

import (
	"log"
	"os"
	"path/filepath"
)

// ScanResult holds everything one scan pass turned up.
type ScanResult struct {
	Findings []Finding   `json:"findings"`
	Errors   []ScanError `json:"errors,omitempty"`
}

// ScanError is a non-fatal problem with one source.
type ScanError struct {
	Source string `json:"source"`
	Path   string `json:"path"`
	Error  string `json:"error"`
}

// ScanAll checks every known source. The first hit per source wins; the
// same provider can surface from several sources and the user picks one
// at import time.
func ScanAll() *ScanResult {
	result := &ScanResult{
		Findings: make([]Finding, 0),
		Errors:   make([]ScanError, 0),
	}

	for _, source := range envSources {
		for _, name := range source.Vars {
			if key := os.Getenv(name); key != "" {
				result.Findings = append(result.Findings, Finding{
					Provider: source.Provider,
					Source:   "env",
					Location: name,
					APIKey:   key,
				})
				break
			}
		}
	}

	for _, source := range fileSources {
		findings, errs := scanFileSource(source)
		result.Findings = append(result.Findings, findings...)
		result.Errors = append(result.Errors, errs...)
	}

	log.Printf("🔍 Discovery: found %d credentials across %d sources",
		len(result.Findings), len(envSources)+len(fileSources))
	return result
}

func scanFileSource(source fileSource) ([]Finding, []ScanError) {
	var findings []Finding
	var errors []ScanError

	for _, pattern := range source.Paths {
		expanded := expandPath(pattern)

		matches, err := filepath.Glob(expanded)
		if err != nil {
			errors = append(errors, ScanError{
				Source: source.Name,
				Path:   expanded,
				Error:  "glob error: " + err.Error(),
			})
			continue
		}

		for _, path := range matches {
			key, err := source.Parser(path)
			if err != nil {
				errors = append(errors, ScanError{
					Source: source.Name,
					Path:   path,
					Error:  err.Error(),
				})
				continue
			}
			if key == "" {
				continue
			}
			log.Printf("🔍 Found %s credentials from %s: %s", source.Provider, source.Name, path)
			findings = append(findings, Finding{
				Provider: source.Provider,
				Source:   source.Name,
				Location: path,
				APIKey:   key,
			})
		}
	}

	return findings, errors
}

// MaskKey renders a discovered key for display: enough to recognize it,
// never enough to use it.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// Masked returns a display copy of the finding.
func (f Finding) Masked() Finding {
	f.APIKey = MaskKey(f.APIKey)
	return f
}
