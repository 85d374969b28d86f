package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/pkg/logger"
)

// CaseProcessor drives one case end to end: open it on the portal, check
// early exits, discover parties, resolve documents and accumulate facts,
// then write exactly one terminal status.
type CaseProcessor struct {
	cfg       *config.Config
	store     *CaseStore
	resolver  *DocumentResolver
	extractor Extractor
	artifacts *ArtifactStore // nil when archiving is disabled
}

func NewCaseProcessor(cfg *config.Config, store *CaseStore, resolver *DocumentResolver, extractor Extractor, artifacts *ArtifactStore) *CaseProcessor {
	return &CaseProcessor{
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		extractor: extractor,
		artifacts: artifacts,
	}
}

// Process runs the case with the given portal session. A non-nil return
// means the session is unusable and the caller should rebuild it and retry;
// every other outcome, including failures, ends with a terminal status in
// the store and a nil return.
func (p *CaseProcessor) Process(ctx context.Context, session PortalSession, caseNumber string) error {
	ctx = logger.WithCase(ctx, caseNumber)

	c, err := p.store.Get(ctx, caseNumber)
	if err != nil {
		logger.Warn(ctx, "case vanished before processing", "error", err)
		return nil
	}

	if err := p.store.UpdateStatus(ctx, caseNumber, model.StatusProcessing); err != nil {
		logger.Error(ctx, "failed to mark case processing", "error", err)
		return nil
	}

	defer p.cleanup(ctx, session, caseNumber)

	if err := session.Ensure(ctx); err != nil {
		logger.Warn(ctx, "session verification failed", "error", err)
		return fmt.Errorf("session verification: %w", ErrSessionExpired)
	}

	details, err := session.OpenCase(ctx, caseNumber, c.CaseNameForSearch)
	if errors.Is(err, ErrCaseNotFound) {
		logger.Info(ctx, "case not found on portal")
		p.setTerminal(ctx, caseNumber, model.StatusCaseNotFound)
		return nil
	}
	if err != nil {
		return p.caseFailure(ctx, caseNumber, "open case", err)
	}
	if err := p.store.UpdatePortalDetails(ctx, caseNumber, details.Name, details.Number, details.URL); err != nil {
		return p.caseFailure(ctx, caseNumber, "save portal details", err)
	}

	dismissed, err := session.HasVoluntaryDismissal(ctx)
	if err != nil {
		return p.caseFailure(ctx, caseNumber, "check voluntary dismissal", err)
	}
	if dismissed {
		logger.Info(ctx, "voluntary dismissal found, skipping case")
		p.setTerminal(ctx, caseNumber, model.StatusVoluntaryDismissal)
		return nil
	}

	names, err := session.ListParties(ctx, oppositeRole(c.CreditorType))
	if err != nil {
		return p.caseFailure(ctx, caseNumber, "list parties", err)
	}
	parties := filterParties(names, c.InputCreditorName)
	if err := p.store.UpdateParties(ctx, caseNumber, parties); err != nil {
		return p.caseFailure(ctx, caseNumber, "save parties", err)
	}

	destDir := p.caseTempDir(caseNumber)
	downloaded, all, err := p.resolver.Resolve(ctx, session, caseNumber, destDir)
	if err != nil {
		return p.caseFailure(ctx, caseNumber, "resolve documents", err)
	}
	if len(all) == 0 {
		logger.Info(ctx, "no relevant documents found")
		p.setTerminal(ctx, caseNumber, model.StatusNoRelevantDocuments)
		return nil
	}
	logger.Info(ctx, "documents resolved",
		"identified", len(all), "downloaded", len(downloaded))

	// Re-read the case so the accumulator seeds from the parties and any
	// facts a previous attempt already persisted.
	c, err = p.store.Get(ctx, caseNumber)
	if err != nil {
		return p.caseFailure(ctx, caseNumber, "reload case", err)
	}

	acc := NewFactAccumulator(p.store, p.extractor, c, p.cfg.Facts.ExtractPartyAddresses)
	if err := acc.Run(ctx, downloaded); err != nil {
		return p.caseFailure(ctx, caseNumber, "extract facts", err)
	}

	p.archive(ctx, caseNumber, downloaded)

	final, err := p.finalStatus(ctx, caseNumber, acc)
	if err != nil {
		return p.caseFailure(ctx, caseNumber, "compute final status", err)
	}
	p.setTerminal(ctx, caseNumber, final)
	logger.Info(ctx, "case processed", "status", final)
	return nil
}

// finalStatus inspects the persisted document summary: any relevant
// document stuck in a non-acceptable state forces Completed_With_Errors;
// otherwise the essential-fact check decides between fully and partially
// complete.
func (p *CaseProcessor) finalStatus(ctx context.Context, caseNumber string, acc *FactAccumulator) (string, error) {
	c, err := p.store.Get(ctx, caseNumber)
	if err != nil {
		return "", err
	}

	for _, doc := range c.Documents {
		if !model.IsDocFinalForCase(doc.Status) {
			return model.StatusCompletedWithErrors, nil
		}
	}
	if acc.AllResolved() {
		return model.StatusCompletedSuccessfully, nil
	}
	return model.StatusCompletedMissingData, nil
}

// caseFailure classifies an error from a processing step: session expiry
// propagates so the worker can rebuild and retry, everything else is
// recorded as a worker error and swallowed.
func (p *CaseProcessor) caseFailure(ctx context.Context, caseNumber, step string, err error) error {
	if errors.Is(err, ErrSessionExpired) {
		logger.Warn(ctx, "session expired mid-case", "step", step)
		return fmt.Errorf("%s: %w", step, err)
	}
	logger.Error(ctx, "case processing failed", "step", step, "error", err)
	p.setTerminal(ctx, caseNumber, model.StatusWorkerError)
	return nil
}

func (p *CaseProcessor) setTerminal(ctx context.Context, caseNumber, status string) {
	if err := p.store.UpdateStatus(ctx, caseNumber, status); err != nil {
		logger.Error(ctx, "failed to write terminal status", "status", status, "error", err)
	}
}

// archive copies downloaded documents to object storage before the temp
// directory is wiped. Archive failures are logged, never fatal.
func (p *CaseProcessor) archive(ctx context.Context, caseNumber string, docs []*TransientDocument) {
	if p.artifacts == nil {
		return
	}
	for _, doc := range docs {
		if doc.LocalPath == "" {
			continue
		}
		if err := p.artifacts.ArchiveDocument(ctx, caseNumber, doc.LocalPath); err != nil {
			logger.Warn(ctx, "artifact archive failed", "document", doc.Title, "error", err)
		}
	}
}

// cleanup releases per-case resources. It is safe to run more than once
// and must never mask the case's recorded outcome.
func (p *CaseProcessor) cleanup(ctx context.Context, session PortalSession, caseNumber string) {
	if err := session.CloseCase(ctx); err != nil {
		logger.Warn(ctx, "failed to close case page", "error", err)
	}
	if err := session.ClearSearch(ctx); err != nil {
		logger.Warn(ctx, "failed to clear portal search", "error", err)
	}
	if err := p.RemoveTempArtifacts(caseNumber); err != nil {
		logger.Warn(ctx, "failed to remove temp downloads", "error", err)
	}
}

// RemoveTempArtifacts deletes the case's download directory. Idempotent:
// removing an already-absent directory is not an error.
func (p *CaseProcessor) RemoveTempArtifacts(caseNumber string) error {
	return os.RemoveAll(p.caseTempDir(caseNumber))
}

func (p *CaseProcessor) caseTempDir(caseNumber string) string {
	return filepath.Join(p.cfg.Documents.DownloadDir, sanitizeFilename(caseNumber))
}

// oppositeRole maps the input party's role to the role of its associated
// parties.
func oppositeRole(role string) string {
	if strings.EqualFold(role, "Plaintiff") {
		return "Defendant"
	}
	return "Plaintiff"
}

// filterParties drops the input party itself from the discovered names,
// matching by case-insensitive substring in either direction.
func filterParties(names []string, creditorName string) []string {
	creditor := strings.ToLower(strings.TrimSpace(creditorName))
	out := make([]string, 0, len(names))
	for _, name := range names {
		candidate := strings.ToLower(strings.TrimSpace(name))
		if candidate == "" {
			continue
		}
		if creditor != "" && (strings.Contains(candidate, creditor) || strings.Contains(creditor, candidate)) {
			continue
		}
		out = append(out, name)
	}
	return out
}
