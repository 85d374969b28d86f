package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
)

func newAgentTestServer(t *testing.T, handler http.HandlerFunc) (*AgentPortal, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	portal := NewAgentPortal(&config.UnicourtConfig{
		AgentURL:                  server.URL,
		APIToken:                  "test-token",
		TimeoutSeconds:            5,
		OrderAppearTimeoutSeconds: 120,
	})
	return portal, server
}

func TestAgentPortalNewSession(t *testing.T) {
	portal, _ := newAgentTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/sessions" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Unexpected auth header: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
	})

	session, err := portal.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if session == nil {
		t.Fatal("Expected non-nil session")
	}
}

func TestAgentPortalOpenCase(t *testing.T) {
	portal, _ := newAgentTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/sessions":
			json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
		case strings.HasSuffix(r.URL.Path, "/case/open"):
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["case_number"] != "2023-CA-001" {
				t.Errorf("Unexpected case_number: %s", body["case_number"])
			}
			json.NewEncoder(w).Encode(CaseDetails{
				Name:   "ACME VS DOE",
				Number: "23-CA-001",
				URL:    "https://app.unicourt.com/case/abc",
			})
		default:
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
	})

	session, err := portal.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	details, err := session.OpenCase(context.Background(), "2023-CA-001", "Acme v Doe")
	if err != nil {
		t.Fatalf("OpenCase failed: %v", err)
	}
	if details.Name != "ACME VS DOE" || details.URL != "https://app.unicourt.com/case/abc" {
		t.Errorf("Unexpected details: %+v", details)
	}
}

func TestAgentPortalCaseNotFound(t *testing.T) {
	portal, _ := newAgentTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/sessions" {
			json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "case_not_found", "message": "no match"})
	})

	session, _ := portal.NewSession(context.Background())
	_, err := session.OpenCase(context.Background(), "missing", "Nobody v Nothing")
	if !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("Expected ErrCaseNotFound, got %v", err)
	}
}

func TestAgentPortalSessionExpired(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"401 status", http.StatusUnauthorized, `{}`},
		{"structured code", http.StatusConflict, `{"code":"session_expired","message":"logged out"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal, _ := newAgentTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/v1/sessions" {
					json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
					return
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			session, _ := portal.NewSession(context.Background())
			err := session.Ensure(context.Background())
			if !errors.Is(err, ErrSessionExpired) {
				t.Errorf("Expected ErrSessionExpired, got %v", err)
			}
		})
	}
}

func TestAgentPortalListDocuments(t *testing.T) {
	portal, _ := newAgentTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/sessions" {
			json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
			return
		}
		if got := r.URL.Query().Get("section"); got != "paid" {
			t.Errorf("Expected section=paid, got %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{
				{"key": "k1", "name": "FINAL JUDGMENT", "requires_payment": false},
				{"key": "k2", "name": "COMPLAINT", "requires_payment": true},
			},
		})
	})

	session, _ := portal.NewSession(context.Background())
	docs, err := session.ListDocuments(context.Background(), model.SectionPaid)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[0].Section != model.SectionPaid {
		t.Errorf("Expected section to be stamped on results, got %s", docs[0].Section)
	}
	if !docs[1].RequiresPayment {
		t.Error("Expected second document to require payment")
	}
}

func TestAgentPortalDownload(t *testing.T) {
	portal, _ := newAgentTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/sessions" {
			json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
			return
		}
		w.Header().Set("X-Download-Fallback", "true")
		w.Write([]byte("%PDF-1.4 fake"))
	})

	session, _ := portal.NewSession(context.Background())
	destDir := t.TempDir()

	result, err := session.Download(context.Background(),
		PortalDocument{Key: "k1", Name: "FINAL JUDGMENT: A/B"}, destDir)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !result.UsedFallback {
		t.Error("Expected fallback flag from response header")
	}

	// Unsafe characters in the title must not escape the dest dir
	if filepath.Dir(result.LocalPath) != destDir {
		t.Errorf("Expected file inside %s, got %s", destDir, result.LocalPath)
	}
	data, err := os.ReadFile(result.LocalPath)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(data) != "%PDF-1.4 fake" {
		t.Errorf("Unexpected file contents: %s", data)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FINAL JUDGMENT", "FINAL JUDGMENT"},
		{"A/B:C", "A_B_C"},
		{`doc"with<odd>chars|`, "doc_with_odd_chars_"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
