package service

import (
	"context"
	"errors"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
)

var (
	// ErrSessionExpired means the portal session is no longer usable and
	// the worker must build a fresh one before retrying the case.
	ErrSessionExpired = errors.New("portal session expired")

	// ErrCaseNotFound means the portal search found no case matching the
	// given name and number.
	ErrCaseNotFound = errors.New("case not found on portal")
)

// CaseDetails are the identifying fields of a case as the portal shows it.
type CaseDetails struct {
	Name   string `json:"case_name"`
	Number string `json:"case_number"`
	URL    string `json:"case_url"`
}

// PortalDocument is one row of a case's document list.
type PortalDocument struct {
	Key             string                `json:"key"`
	Name            string                `json:"name"`
	Section         model.DocumentSection `json:"section"`
	RequiresPayment bool                  `json:"requires_payment"`
}

// DownloadResult reports where a document landed and whether the direct
// download failed and the viewer-based fallback produced the file instead.
type DownloadResult struct {
	LocalPath    string
	UsedFallback bool
}

// PortalSession is one logged-in browsing session on the Unicourt portal.
// Sessions hold per-case navigation state, so a session works on one case
// at a time: OpenCase, then the case-scoped calls, then CloseCase.
//
// Any method may return ErrSessionExpired; the caller owns rebuilding.
type PortalSession interface {
	// Ensure verifies the session is logged in, re-authenticating if the
	// portal dropped it.
	Ensure(ctx context.Context) error

	// OpenCase searches by name, narrows by case number and opens the
	// case page. Returns ErrCaseNotFound when nothing matches.
	OpenCase(ctx context.Context, caseNumber, caseName string) (*CaseDetails, error)

	// HasVoluntaryDismissal checks the open case's docket for a voluntary
	// dismissal entry, which makes further processing pointless.
	HasVoluntaryDismissal(ctx context.Context) (bool, error)

	// ListParties returns the open case's party names for one role
	// ("Plaintiff" or "Defendant").
	ListParties(ctx context.Context, role string) ([]string, error)

	// ListDocuments enumerates one section of the open case's documents.
	ListDocuments(ctx context.Context, section model.DocumentSection) ([]PortalDocument, error)

	// OrderDocuments orders the given paid documents so they appear in
	// the CrowdSourced section. Portal order forms cap the batch size, so
	// callers chunk the keys.
	OrderDocuments(ctx context.Context, keys []string) error

	// Download fetches a document into destDir.
	Download(ctx context.Context, doc PortalDocument, destDir string) (*DownloadResult, error)

	// CloseCase leaves the open case page.
	CloseCase(ctx context.Context) error

	// ClearSearch resets the portal search form so leftover filters never
	// leak into the next case.
	ClearSearch(ctx context.Context) error

	// Close tears the session down.
	Close(ctx context.Context) error
}

// Portal builds sessions. Each worker owns exactly one live session.
type Portal interface {
	NewSession(ctx context.Context) (PortalSession, error)
}
