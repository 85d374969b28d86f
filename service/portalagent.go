package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
)

// AgentPortal talks to the browser-automation agent that drives the real
// Unicourt UI. The agent exposes one REST resource per browser session and
// reports portal-level failures as structured error codes, which this
// client maps onto the sentinel errors the rest of the pipeline handles.
type AgentPortal struct {
	client *resty.Client
	cfg    *config.UnicourtConfig
}

type agentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewAgentPortal(cfg *config.UnicourtConfig) *AgentPortal {
	client := resty.New()
	client.SetBaseURL(cfg.AgentURL)
	client.SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	if cfg.APIToken != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIToken)
	}

	return &AgentPortal{client: client, cfg: cfg}
}

// NewSession asks the agent to launch a fresh logged-in browser session.
func (p *AgentPortal) NewSession(ctx context.Context) (PortalSession, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}

	res, err := p.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&agentError{}).
		Post("/api/v1/sessions")
	if err != nil {
		return nil, fmt.Errorf("create portal session: %w", err)
	}
	if res.IsError() {
		return nil, agentErr(res)
	}
	if out.SessionID == "" {
		return nil, fmt.Errorf("create portal session: empty session id")
	}

	return &agentSession{portal: p, id: out.SessionID}, nil
}

type agentSession struct {
	portal *AgentPortal
	id     string
}

func (s *agentSession) Ensure(ctx context.Context) error {
	res, err := s.portal.client.R().
		SetContext(ctx).
		SetError(&agentError{}).
		Post("/api/v1/sessions/" + s.id + "/ensure")
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	if res.IsError() {
		return agentErr(res)
	}
	return nil
}

func (s *agentSession) OpenCase(ctx context.Context, caseNumber, caseName string) (*CaseDetails, error) {
	var out CaseDetails

	res, err := s.portal.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"case_number": caseNumber,
			"case_name":   caseName,
		}).
		SetResult(&out).
		SetError(&agentError{}).
		Post("/api/v1/sessions/" + s.id + "/case/open")
	if err != nil {
		return nil, fmt.Errorf("open case %s: %w", caseNumber, err)
	}
	if res.IsError() {
		return nil, agentErr(res)
	}
	return &out, nil
}

func (s *agentSession) HasVoluntaryDismissal(ctx context.Context) (bool, error) {
	var out struct {
		Found bool `json:"found"`
	}

	res, err := s.portal.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&agentError{}).
		Get("/api/v1/sessions/" + s.id + "/case/voluntary-dismissal")
	if err != nil {
		return false, fmt.Errorf("check voluntary dismissal: %w", err)
	}
	if res.IsError() {
		return false, agentErr(res)
	}
	return out.Found, nil
}

func (s *agentSession) ListParties(ctx context.Context, role string) ([]string, error) {
	var out struct {
		Parties []string `json:"parties"`
	}

	res, err := s.portal.client.R().
		SetContext(ctx).
		SetQueryParam("role", role).
		SetResult(&out).
		SetError(&agentError{}).
		Get("/api/v1/sessions/" + s.id + "/case/parties")
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	if res.IsError() {
		return nil, agentErr(res)
	}
	return out.Parties, nil
}

func (s *agentSession) ListDocuments(ctx context.Context, section model.DocumentSection) ([]PortalDocument, error) {
	var out struct {
		Documents []PortalDocument `json:"documents"`
	}

	res, err := s.portal.client.R().
		SetContext(ctx).
		SetQueryParam("section", string(section)).
		SetResult(&out).
		SetError(&agentError{}).
		Get("/api/v1/sessions/" + s.id + "/case/documents")
	if err != nil {
		return nil, fmt.Errorf("list %s documents: %w", section, err)
	}
	if res.IsError() {
		return nil, agentErr(res)
	}

	for i := range out.Documents {
		out.Documents[i].Section = section
	}
	return out.Documents, nil
}

func (s *agentSession) OrderDocuments(ctx context.Context, keys []string) error {
	res, err := s.portal.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"keys":                   keys,
			"appear_timeout_seconds": s.portal.cfg.OrderAppearTimeoutSeconds,
		}).
		SetError(&agentError{}).
		Post("/api/v1/sessions/" + s.id + "/case/documents/order")
	if err != nil {
		return fmt.Errorf("order %d documents: %w", len(keys), err)
	}
	if res.IsError() {
		return agentErr(res)
	}
	return nil
}

func (s *agentSession) Download(ctx context.Context, doc PortalDocument, destDir string) (*DownloadResult, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	localPath := filepath.Join(destDir, sanitizeFilename(doc.Name)+".pdf")

	res, err := s.portal.client.R().
		SetContext(ctx).
		SetError(&agentError{}).
		SetOutput(localPath).
		Get("/api/v1/sessions/" + s.id + "/case/documents/" + doc.Key + "/download")
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", doc.Name, err)
	}
	if res.IsError() {
		os.Remove(localPath)
		return nil, agentErr(res)
	}

	return &DownloadResult{
		LocalPath:    localPath,
		UsedFallback: res.Header().Get("X-Download-Fallback") == "true",
	}, nil
}

func (s *agentSession) CloseCase(ctx context.Context) error {
	res, err := s.portal.client.R().
		SetContext(ctx).
		SetError(&agentError{}).
		Post("/api/v1/sessions/" + s.id + "/case/close")
	if err != nil {
		return fmt.Errorf("close case: %w", err)
	}
	if res.IsError() {
		return agentErr(res)
	}
	return nil
}

func (s *agentSession) ClearSearch(ctx context.Context) error {
	res, err := s.portal.client.R().
		SetContext(ctx).
		SetError(&agentError{}).
		Post("/api/v1/sessions/" + s.id + "/search/clear")
	if err != nil {
		return fmt.Errorf("clear search: %w", err)
	}
	if res.IsError() {
		return agentErr(res)
	}
	return nil
}

func (s *agentSession) Close(ctx context.Context) error {
	res, err := s.portal.client.R().
		SetContext(ctx).
		SetError(&agentError{}).
		Delete("/api/v1/sessions/" + s.id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if res.IsError() {
		return agentErr(res)
	}
	return nil
}

// agentErr maps the agent's structured error responses onto sentinel
// errors where the pipeline branches on them.
func agentErr(res *resty.Response) error {
	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusGone {
		return ErrSessionExpired
	}

	if ae, ok := res.Error().(*agentError); ok && ae != nil {
		switch ae.Code {
		case "session_expired":
			return ErrSessionExpired
		case "case_not_found":
			return ErrCaseNotFound
		}
		if ae.Message != "" {
			return fmt.Errorf("portal agent: %s (HTTP %d)", ae.Message, res.StatusCode())
		}
	}
	return fmt.Errorf("portal agent: HTTP %d", res.StatusCode())
}

// sanitizeFilename keeps document titles usable as file names.
func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
