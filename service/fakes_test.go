package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
)

// fakeSession is an in-memory PortalSession scripted by each test.
type fakeSession struct {
	ensureErr error

	details    *CaseDetails
	openErr    error
	dismissal  bool
	parties    map[string][]string // role -> names
	partiesErr error

	paidDocs  []PortalDocument
	crowdDocs []PortalDocument

	// orderErrs maps the 0-based order-call index to an error.
	orderErrs     map[int]error
	orderCalls    [][]string
	orderedAppear bool              // ordered docs show up in the crowdsourced section
	crowdKeyFor   map[string]string // ordered docs reappear under a new key when set

	downloadErrs  map[string]error
	fallbackFor   map[string]bool
	downloadCalls []string
	listCalls     int
	closedCase    bool
	clearedSearch bool
	closed        bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		details:       &CaseDetails{Name: "ACME VS DOE", Number: "23-CA-001", URL: "https://portal/case/abc"},
		orderErrs:     map[int]error{},
		downloadErrs:  map[string]error{},
		fallbackFor:   map[string]bool{},
		parties:       map[string][]string{},
		crowdKeyFor:   map[string]string{},
		orderedAppear: true,
	}
}

func (f *fakeSession) Ensure(ctx context.Context) error { return f.ensureErr }

func (f *fakeSession) OpenCase(ctx context.Context, caseNumber, caseName string) (*CaseDetails, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.details, nil
}

func (f *fakeSession) HasVoluntaryDismissal(ctx context.Context) (bool, error) {
	return f.dismissal, nil
}

func (f *fakeSession) ListParties(ctx context.Context, role string) ([]string, error) {
	if f.partiesErr != nil {
		return nil, f.partiesErr
	}
	return f.parties[role], nil
}

func (f *fakeSession) ListDocuments(ctx context.Context, section model.DocumentSection) ([]PortalDocument, error) {
	f.listCalls++
	var rows []PortalDocument
	switch section {
	case model.SectionPaid:
		rows = f.paidDocs
	case model.SectionCrowdSourced:
		rows = f.crowdDocs
	}
	out := make([]PortalDocument, len(rows))
	copy(out, rows)
	for i := range out {
		out[i].Section = section
	}
	return out, nil
}

func (f *fakeSession) OrderDocuments(ctx context.Context, keys []string) error {
	call := len(f.orderCalls)
	f.orderCalls = append(f.orderCalls, keys)
	if err, ok := f.orderErrs[call]; ok {
		return err
	}
	if f.orderedAppear {
		for _, key := range keys {
			for _, d := range f.paidDocs {
				if d.Key == key {
					crowdKey := d.Key
					if mapped, ok := f.crowdKeyFor[d.Key]; ok {
						crowdKey = mapped
					}
					f.crowdDocs = append(f.crowdDocs, PortalDocument{Key: crowdKey, Name: d.Name})
				}
			}
		}
	}
	return nil
}

func (f *fakeSession) Download(ctx context.Context, doc PortalDocument, destDir string) (*DownloadResult, error) {
	f.downloadCalls = append(f.downloadCalls, doc.Name)
	if err, ok := f.downloadErrs[doc.Name]; ok {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(destDir, sanitizeFilename(doc.Name)+".pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 "+doc.Name), 0o644); err != nil {
		return nil, err
	}
	return &DownloadResult{LocalPath: path, UsedFallback: f.fallbackFor[doc.Name]}, nil
}

func (f *fakeSession) CloseCase(ctx context.Context) error {
	f.closedCase = true
	return nil
}

func (f *fakeSession) ClearSearch(ctx context.Context) error {
	f.clearedSearch = true
	return nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

// fakeExtractor returns scripted results keyed by document file name.
type fakeExtractor struct {
	results map[string]*ExtractionResult
	errs    map[string]error
	calls   []FactNeed
	paths   []string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		results: map[string]*ExtractionResult{},
		errs:    map[string]error{},
	}
}

func (f *fakeExtractor) Extract(ctx context.Context, localPath string, need FactNeed) (*ExtractionResult, error) {
	name := filepath.Base(localPath)
	f.calls = append(f.calls, need)
	f.paths = append(f.paths, name)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if res, ok := f.results[name]; ok {
		return res, nil
	}
	return &ExtractionResult{}, nil
}

// fakePortal hands out pre-built sessions, failing once sessions run out.
type fakePortal struct {
	sessions []*fakeSession
	built    int
}

func (f *fakePortal) NewSession(ctx context.Context) (PortalSession, error) {
	if f.built >= len(f.sessions) {
		return nil, fmt.Errorf("no more sessions available")
	}
	s := f.sessions[f.built]
	f.built++
	return s, nil
}
