package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/pkg/logger"
)

// FactAccumulator tracks which of a case's facts are still unresolved and
// runs the extraction loop over downloaded documents. Merge rules: first
// writer wins per scalar fact, one address per associated party, and a
// document is skipped entirely once nothing is needed anymore.
type FactAccumulator struct {
	store     *CaseStore
	extractor Extractor

	caseNumber   string
	creditorName string
	creditorType string
	isBusiness   bool

	haveOriginalName bool
	haveAddress      bool
	haveRegState     bool // vacuously true for non-business creditors

	// partyResolved is nil when party-address extraction is disabled.
	partyResolved map[string]bool
}

// NewFactAccumulator seeds the accumulator from the case's already-resolved
// facts, so a reprocessed case never re-requests what it has.
func NewFactAccumulator(store *CaseStore, extractor Extractor, c *model.Case, extractPartyAddresses bool) *FactAccumulator {
	a := &FactAccumulator{
		store:            store,
		extractor:        extractor,
		caseNumber:       c.CaseNumber,
		creditorName:     c.InputCreditorName,
		creditorType:     c.CreditorType,
		isBusiness:       c.IsBusiness,
		haveOriginalName: c.OriginalCreditorName != "",
		haveAddress:      c.CreditorAddress != "",
		haveRegState:     !c.IsBusiness || c.RegistrationState != "",
	}

	if extractPartyAddresses {
		a.partyResolved = make(map[string]bool, len(c.AssociatedParties))
		for _, name := range c.AssociatedParties {
			a.partyResolved[name] = false
		}
		for _, pa := range c.PartyAddresses {
			a.partyResolved[pa.Name] = true
		}
	}

	return a
}

// Need reports which facts the next document should be asked for.
func (a *FactAccumulator) Need() FactNeed {
	need := FactNeed{
		OriginalCreditorName: !a.haveOriginalName,
		CreditorAddress:      !a.haveAddress,
		RegistrationState:    !a.haveRegState,
		CreditorName:         a.creditorName,
		IsBusiness:           a.isBusiness,
		CreditorType:         a.creditorType,
	}
	for name, resolved := range a.partyResolved {
		if !resolved {
			need.PartyAddressesFor = append(need.PartyAddressesFor, name)
		}
	}
	sort.Strings(need.PartyAddressesFor)
	return need
}

// AllResolved reports whether every essential fact is in hand.
func (a *FactAccumulator) AllResolved() bool {
	return !a.Need().Any()
}

// Run processes the downloaded documents in discovery order. Each document
// ends with a terminal status persisted immediately, so a crash mid-case
// loses at most the in-flight document. Extraction failures are recorded
// per document and never abort the loop.
func (a *FactAccumulator) Run(ctx context.Context, docs []*TransientDocument) error {
	for _, doc := range docs {
		need := a.Need()
		if !need.Any() {
			// Everything resolved already: skip the extraction call.
			doc.Status = model.DocSkippedNotNeeded
			if err := a.persistDoc(ctx, doc); err != nil {
				return err
			}
			continue
		}

		result, err := a.extractor.Extract(ctx, doc.LocalPath, need)
		switch {
		case errors.Is(err, ErrConversionFailed):
			doc.Status = model.DocExtractionPrepFailed
			doc.Notes = err.Error()
		case err != nil:
			doc.Status = model.DocExtractionError
			doc.Notes = err.Error()
			logger.Warn(ctx, "extraction failed", "document", doc.Title, "error", err)
		case result.Empty():
			doc.Status = model.DocExtractionNoData
		default:
			if err := a.merge(ctx, doc, need, result); err != nil {
				return err
			}
			doc.Status = model.DocExtractionSuccess
		}

		if err := a.persistDoc(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// merge folds one extraction result into the case, persisting each fact as
// it lands. Facts already resolved are never touched.
func (a *FactAccumulator) merge(ctx context.Context, doc *TransientDocument, need FactNeed, result *ExtractionResult) error {
	if need.OriginalCreditorName && result.OriginalCreditorName != "" {
		saved, err := a.store.SaveFact(ctx, a.caseNumber, FactOriginalCreditorName, result.OriginalCreditorName, doc.Title)
		if err != nil {
			return fmt.Errorf("save original creditor name: %w", err)
		}
		if saved {
			a.haveOriginalName = true
		}
	}
	if need.CreditorAddress && result.CreditorAddress != "" {
		saved, err := a.store.SaveFact(ctx, a.caseNumber, FactCreditorAddress, result.CreditorAddress, doc.Title)
		if err != nil {
			return fmt.Errorf("save creditor address: %w", err)
		}
		if saved {
			a.haveAddress = true
		}
	}
	if need.RegistrationState && result.RegistrationState != "" {
		saved, err := a.store.SaveFact(ctx, a.caseNumber, FactRegistrationState, result.RegistrationState, doc.Title)
		if err != nil {
			return fmt.Errorf("save registration state: %w", err)
		}
		if saved {
			a.haveRegState = true
		}
	}

	for name, address := range result.PartyAddresses {
		if address == "" {
			continue
		}
		resolved, tracked := a.partyResolved[name]
		if !tracked || resolved {
			continue
		}
		added, err := a.store.AppendPartyAddress(ctx, a.caseNumber, model.PartyAddress{
			Name:      name,
			Address:   address,
			SourceDoc: doc.Title,
		})
		if err != nil {
			return fmt.Errorf("save party address for %s: %w", name, err)
		}
		if added {
			a.partyResolved[name] = true
		}
	}

	return nil
}

func (a *FactAccumulator) persistDoc(ctx context.Context, doc *TransientDocument) error {
	return a.store.UpsertDocumentOutcome(ctx, a.caseNumber, doc.outcome())
}
