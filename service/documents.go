package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/pkg/logger"
)

// TransientDocument lives only for one case run. Its terminal status and
// notes are copied into the case's document summary as they change.
type TransientDocument struct {
	Title           string
	PortalKey       string
	Type            model.DocumentType
	Section         model.DocumentSection
	RequiresPayment bool
	LocalPath       string
	UsedFallback    bool
	Status          string
	Notes           string
}

func (d *TransientDocument) outcome() model.DocumentOutcome {
	return model.DocumentOutcome{
		Name:      d.Title,
		PortalKey: d.PortalKey,
		Status:    d.Status,
		Notes:     d.Notes,
	}
}

// DocumentResolver finds a case's relevant documents, orders the free paid
// ones, downloads whatever becomes available and leaves every identified
// document with a terminal status in the summary.
type DocumentResolver struct {
	cfg   *config.DocumentsConfig
	store *CaseStore
}

func NewDocumentResolver(cfg *config.DocumentsConfig, store *CaseStore) *DocumentResolver {
	return &DocumentResolver{cfg: cfg, store: store}
}

// Resolve runs discovery, ordering and download for the case currently
// open in the session. It returns the successfully downloaded documents in
// discovery order and the full document list for status computation.
//
// Document-level failures are recorded on the documents themselves and
// never abort the run; only session-level errors propagate.
func (r *DocumentResolver) Resolve(ctx context.Context, session PortalSession, caseNumber, destDir string) (downloaded, all []*TransientDocument, err error) {
	docs, err := r.discover(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) == 0 {
		return nil, nil, nil
	}
	if err := r.persist(ctx, caseNumber, docs); err != nil {
		return nil, docs, err
	}

	if err := r.orderFreeDocuments(ctx, session, caseNumber, docs); err != nil {
		return nil, docs, err
	}

	downloaded, err = r.downloadAvailable(ctx, session, caseNumber, destDir, &docs)
	if err != nil {
		return nil, docs, err
	}

	// Safeguard: anything still in an intermediate status (ordered but
	// never surfaced for download) becomes a terminal failure.
	for _, d := range docs {
		switch d.Status {
		case model.DocIdentified, model.DocOrderingCompleted:
			d.Status = model.DocOrderingFailed
			if d.Notes == "" {
				d.Notes = "document never became available for download"
			}
			if err := r.persistOne(ctx, caseNumber, d); err != nil {
				return downloaded, docs, err
			}
		}
	}

	return downloaded, docs, nil
}

// discover enumerates both portal sections and keeps only relevant rows.
// A row whose title matches no keyword is dropped without being recorded.
func (r *DocumentResolver) discover(ctx context.Context, session PortalSession) ([]*TransientDocument, error) {
	paid, err := session.ListDocuments(ctx, model.SectionPaid)
	if err != nil {
		return nil, fmt.Errorf("list paid documents: %w", err)
	}
	crowd, err := session.ListDocuments(ctx, model.SectionCrowdSourced)
	if err != nil {
		return nil, fmt.Errorf("list crowdsourced documents: %w", err)
	}

	var docs []*TransientDocument
	seen := make(map[string]*TransientDocument)

	for _, row := range paid {
		docType := ClassifyTitle(row.Name, r.cfg.FinalJudgmentKeywords, r.cfg.ComplaintKeywords)
		if docType == model.DocTypeUnrelated {
			continue
		}
		d := &TransientDocument{
			Title:           row.Name,
			PortalKey:       row.Key,
			Type:            docType,
			Section:         model.SectionPaid,
			RequiresPayment: row.RequiresPayment,
			Status:          model.DocIdentified,
		}
		if d.RequiresPayment {
			d.Status = model.DocSkippedRequiresPayment
		}
		docs = append(docs, d)
		seen[row.Name] = d
	}

	for _, row := range crowd {
		if existing, ok := seen[row.Name]; ok {
			// Already ordered in some earlier run: directly downloadable,
			// no ordering needed.
			existing.Section = model.SectionCrowdSourced
			if existing.Status == model.DocSkippedRequiresPayment {
				existing.Status = model.DocIdentified
			}
			if row.Key != "" {
				existing.PortalKey = row.Key
			}
			continue
		}
		docType := ClassifyTitle(row.Name, r.cfg.FinalJudgmentKeywords, r.cfg.ComplaintKeywords)
		if docType == model.DocTypeUnrelated {
			continue
		}
		d := &TransientDocument{
			Title:     row.Name,
			PortalKey: row.Key,
			Type:      docType,
			Section:   model.SectionCrowdSourced,
			Status:    model.DocIdentified,
		}
		docs = append(docs, d)
		seen[row.Name] = d
	}

	return docs, nil
}

// orderFreeDocuments orders the free paid-section documents in fixed-size
// chunks. A chunk that fails marks only its own pending documents
// Ordering_Failed; earlier chunks keep their outcomes.
func (r *DocumentResolver) orderFreeDocuments(ctx context.Context, session PortalSession, caseNumber string, docs []*TransientDocument) error {
	var toOrder []*TransientDocument
	for _, d := range docs {
		if d.Section == model.SectionPaid && d.Status == model.DocIdentified {
			toOrder = append(toOrder, d)
		}
	}
	if len(toOrder) == 0 {
		return nil
	}

	chunkSize := r.cfg.OrderChunkSize
	if chunkSize <= 0 {
		chunkSize = 10
	}

	for start := 0; start < len(toOrder); start += chunkSize {
		end := start + chunkSize
		if end > len(toOrder) {
			end = len(toOrder)
		}
		chunk := toOrder[start:end]

		keys := make([]string, 0, len(chunk))
		for _, d := range chunk {
			keys = append(keys, d.PortalKey)
		}

		if err := session.OrderDocuments(ctx, keys); err != nil {
			if errors.Is(err, ErrSessionExpired) {
				return err
			}
			logger.Warn(ctx, "document order chunk failed",
				"chunk_size", len(chunk), "error", err)
			for _, d := range chunk {
				d.Status = model.DocOrderingFailed
				d.Notes = fmt.Sprintf("ordering failed: %v", err)
				if perr := r.persistOne(ctx, caseNumber, d); perr != nil {
					return perr
				}
			}
			continue
		}

		for _, d := range chunk {
			d.Status = model.DocOrderingCompleted
			if err := r.persistOne(ctx, caseNumber, d); err != nil {
				return err
			}
		}
	}

	return nil
}

// downloadAvailable re-enumerates the CrowdSourced section (ordering makes
// documents appear there) and downloads every relevant row it can.
func (r *DocumentResolver) downloadAvailable(ctx context.Context, session PortalSession, caseNumber, destDir string, docs *[]*TransientDocument) ([]*TransientDocument, error) {
	rows, err := session.ListDocuments(ctx, model.SectionCrowdSourced)
	if err != nil {
		return nil, fmt.Errorf("re-list crowdsourced documents: %w", err)
	}

	byName := make(map[string]PortalDocument, len(rows))
	for _, row := range rows {
		byName[row.Name] = row
	}

	// Relevant rows that only materialized after ordering get tracked too.
	known := make(map[string]bool, len(*docs))
	for _, d := range *docs {
		known[d.Title] = true
	}
	for _, row := range rows {
		if known[row.Name] {
			continue
		}
		docType := ClassifyTitle(row.Name, r.cfg.FinalJudgmentKeywords, r.cfg.ComplaintKeywords)
		if docType == model.DocTypeUnrelated {
			continue
		}
		d := &TransientDocument{
			Title:     row.Name,
			PortalKey: row.Key,
			Type:      docType,
			Section:   model.SectionCrowdSourced,
			Status:    model.DocIdentified,
		}
		*docs = append(*docs, d)
		if err := r.persistOne(ctx, caseNumber, d); err != nil {
			return nil, err
		}
	}

	var downloaded []*TransientDocument
	for _, d := range *docs {
		if d.Status != model.DocIdentified && d.Status != model.DocOrderingCompleted {
			continue
		}

		row, ok := byName[d.Title]
		if !ok {
			// Leave intermediate; the safeguard pass turns it terminal.
			continue
		}
		if row.Key != "" {
			d.PortalKey = row.Key
		}

		result, err := session.Download(ctx, row, destDir)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				return downloaded, err
			}
			d.Status = model.DocDownloadFailed
			d.Notes = fmt.Sprintf("download failed: %v", err)
			logger.Warn(ctx, "document download failed", "document", d.Title, "error", err)
		} else {
			d.Status = model.DocDownloadSuccess
			d.LocalPath = result.LocalPath
			d.UsedFallback = result.UsedFallback
			downloaded = append(downloaded, d)
		}
		if err := r.persistOne(ctx, caseNumber, d); err != nil {
			return downloaded, err
		}
	}

	return downloaded, nil
}

func (r *DocumentResolver) persist(ctx context.Context, caseNumber string, docs []*TransientDocument) error {
	outcomes := make([]model.DocumentOutcome, len(docs))
	for i, d := range docs {
		outcomes[i] = d.outcome()
	}
	return r.store.SetDocuments(ctx, caseNumber, outcomes)
}

func (r *DocumentResolver) persistOne(ctx context.Context, caseNumber string, d *TransientDocument) error {
	return r.store.UpsertDocumentOutcome(ctx, caseNumber, d.outcome())
}
