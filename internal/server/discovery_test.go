package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

var discoveryEnvVars = []string{
	"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	"MISTRAL_API_KEY", "DEEPSEEK_API_KEY", "XAI_API_KEY", "GROK_API_KEY",
}

func isolateDiscoveryEnv(t *testing.T) {
	t.Helper()
	for _, name := range discoveryEnvVars {
		t.Setenv(name, "")
	}
}

func TestDiscoveryScanRoute(t *testing.T) {
	isolateDiscoveryEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-discovered-123456789")
	router, _ := newTestRouter(t)

	rec := getJSON(t, router, "/v1/discovery/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope["success"] != true {
		t.Errorf("success = %v", envelope["success"])
	}

	var found map[string]interface{}
	for _, f := range envelope["findings"].([]interface{}) {
		finding := f.(map[string]interface{})
		if finding["provider"] == "openai" && finding["source"] == "env" {
			found = finding
			break
		}
	}
	if found == nil {
		t.Fatalf("no env finding for openai in %s", rec.Body.String())
	}
	if found["location"] != "OPENAI_API_KEY" || found["apiKey"] != "sk-d...6789" {
		t.Errorf("finding = %+v", found)
	}
	if strings.Contains(rec.Body.String(), "sk-discovered-123456789") {
		t.Error("scan response leaked the raw key")
	}
}

func TestDiscoveryImportRoute(t *testing.T) {
	isolateDiscoveryEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-discovered-123456789")
	router, deps := newTestRouter(t)

	rec := postJSON(t, router, "/v1/discovery/import", `{"providers":["openai"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	imported := envelope["imported"].([]interface{})
	if len(imported) != 1 || imported[0] != "openai" {
		t.Errorf("imported = %+v", imported)
	}

	creds, err := deps.Credentials.Get(context.Background(), "openai")
	if err != nil || creds == nil || creds.APIKey != "sk-discovered-123456789" {
		t.Errorf("stored creds = %+v, err %v", creds, err)
	}

	rec = postJSON(t, router, "/v1/discovery/import", `{"providers":["anthropic"]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unmatched provider, got %d", rec.Code)
	}
	if decodeEnvelope(t, rec)["error"] != "No matching credentials found" {
		t.Errorf("error = %v", decodeEnvelope(t, rec)["error"])
	}

	rec = postJSON(t, router, "/v1/discovery/import", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty selection, got %d", rec.Code)
	}
}
