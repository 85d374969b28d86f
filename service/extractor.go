package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
)

// ErrConversionFailed means the document could not be prepared for
// extraction (corrupt file, unreadable scan). The document itself is at
// fault, so retrying with the same file is pointless.
var ErrConversionFailed = errors.New("document conversion failed")

// FactNeed tells the extractor which facts are still missing for a case,
// so it can skip work that a previous document already resolved.
type FactNeed struct {
	OriginalCreditorName bool `json:"original_creditor_name"`
	CreditorAddress      bool `json:"creditor_address"`
	RegistrationState    bool `json:"registration_state"`

	// PartyAddressesFor lists party names whose addresses are still
	// unresolved. Empty means no address extraction is wanted.
	PartyAddressesFor []string `json:"party_addresses_for,omitempty"`

	// Inputs that steer the extraction prompt.
	CreditorName string `json:"creditor_name"`
	IsBusiness   bool   `json:"is_business"`
	CreditorType string `json:"creditor_type"`
}

// Any reports whether at least one fact is still wanted.
func (n FactNeed) Any() bool {
	return n.OriginalCreditorName || n.CreditorAddress || n.RegistrationState ||
		len(n.PartyAddressesFor) > 0
}

// ExtractionResult is what the extraction API found in one document.
// Empty strings mean the document did not contain the fact.
type ExtractionResult struct {
	OriginalCreditorName string            `json:"original_creditor_name"`
	CreditorAddress      string            `json:"creditor_address"`
	RegistrationState    string            `json:"registration_state"`
	PartyAddresses       map[string]string `json:"party_addresses"`
}

// Empty reports whether the extraction found nothing at all.
func (r *ExtractionResult) Empty() bool {
	return r.OriginalCreditorName == "" && r.CreditorAddress == "" &&
		r.RegistrationState == "" && len(r.PartyAddresses) == 0
}

// Extractor pulls facts out of a downloaded document.
type Extractor interface {
	Extract(ctx context.Context, localPath string, need FactNeed) (*ExtractionResult, error)
}

// LLMExtractor calls the document-extraction API, which converts the PDF
// and runs an LLM over it with a prompt built from the requested facts.
type LLMExtractor struct {
	config     *config.ExtractorConfig
	httpClient *http.Client
}

type extractRequest struct {
	Model string   `json:"model"`
	Need  FactNeed `json:"need"`
}

type extractResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"msg"`
	Data    *ExtractionResult `json:"data"`
}

// API error codes the extraction service uses.
const (
	extractCodeOK               = 0
	extractCodeConversionFailed = 2
)

func NewLLMExtractor(cfg *config.ExtractorConfig) *LLMExtractor {
	return &LLMExtractor{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Extract uploads the document and the fact request, and returns whatever
// the service could find. Returns ErrConversionFailed when the document
// itself could not be processed.
func (s *LLMExtractor) Extract(ctx context.Context, localPath string, need FactNeed) (*ExtractionResult, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	reqPart, err := writer.CreateFormField("request")
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := json.NewEncoder(reqPart).Encode(extractRequest{
		Model: s.config.Model,
		Need:  need,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	filePart, err := writer.CreateFormFile("document", filepath.Base(localPath))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := io.Copy(filePart, file); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL+"/v1/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result extractResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	switch result.Code {
	case extractCodeOK:
	case extractCodeConversionFailed:
		return nil, fmt.Errorf("%w: %s", ErrConversionFailed, result.Message)
	default:
		return nil, fmt.Errorf("extraction API error: %s", result.Message)
	}

	if result.Data == nil {
		result.Data = &ExtractionResult{}
	}
	return result.Data, nil
}
