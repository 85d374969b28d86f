package model

import (
	"time"
)

// Case represents one legal case: the caller-supplied input fields, the
// details discovered on Unicourt, and the facts extracted from its documents.
type Case struct {
	// Input fields from the submitter. CaseNumber is the unique key used
	// for de-duplication and datastore lookups.
	CaseNumber        string `json:"case_number"`
	CaseNameForSearch string `json:"case_name_for_search"`
	InputCreditorName string `json:"input_creditor_name"`
	IsBusiness        bool   `json:"is_business"`
	CreditorType      string `json:"creditor_type"` // Plaintiff or Defendant

	// Details filled in once the case is located on Unicourt.
	UnicourtCaseName   string `json:"unicourt_case_name,omitempty"`
	UnicourtCaseNumber string `json:"unicourt_case_number,omitempty"`
	UnicourtCaseURL    string `json:"unicourt_case_url,omitempty"`

	Status string `json:"status"`

	// Facts extracted from documents. First writer wins: once a value is
	// set it is never overwritten, even if a later document disagrees.
	OriginalCreditorName          string `json:"original_creditor_name,omitempty"`
	OriginalCreditorNameSourceDoc string `json:"original_creditor_name_source_doc,omitempty"`
	CreditorAddress               string `json:"creditor_address,omitempty"`
	CreditorAddressSourceDoc      string `json:"creditor_address_source_doc,omitempty"`
	RegistrationState             string `json:"registration_state,omitempty"`
	RegistrationStateSourceDoc    string `json:"registration_state_source_doc,omitempty"`

	AssociatedParties []string       `json:"associated_parties,omitempty"`
	PartyAddresses    []PartyAddress `json:"party_addresses,omitempty"`

	// Documents holds one entry per document ever identified for this
	// case, in discovery order, mutated in place by key/name match.
	Documents []DocumentOutcome `json:"processed_documents_summary"`

	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PartyAddress is the resolved address of an associated party.
type PartyAddress struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	SourceDoc string `json:"source_doc_title,omitempty"`
}

// DocumentOutcome is the persisted summary entry for one document.
type DocumentOutcome struct {
	Name      string `json:"document_name"`
	PortalKey string `json:"unicourt_doc_key,omitempty"`
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
}

// Case status constants. Queued and Processing are the only non-terminal
// states; everything else ends the case.
const (
	StatusQueued                = "Queued"
	StatusProcessing            = "Processing"
	StatusCompletedSuccessfully = "Completed_All_Data_Retrieved"
	StatusCompletedMissingData  = "Completed_Missing_Data"
	StatusCompletedWithErrors   = "Completed_With_Errors"
	StatusCaseNotFound          = "Case_Not_Found_By_Name_And_Number"
	StatusVoluntaryDismissal    = "Voluntary_Dismissal_Found_Skipped"
	StatusNoRelevantDocuments   = "No_Relevant_Documents_Found"
	StatusSessionError          = "Session_Error"
	StatusWorkerError           = "Worker_Error"
)

// IsTerminalStatus reports whether a case status is terminal.
func IsTerminalStatus(status string) bool {
	return status != StatusQueued && status != StatusProcessing
}

// Per-document processing status constants. Identified and
// OrderingCompleted and DownloadSuccess are intermediate; the document
// resolver guarantees every summary entry ends terminal.
const (
	DocIdentified             = "Identified_For_Processing"
	DocSkippedRequiresPayment = "Skipped_Requires_Payment"
	DocOrderingCompleted      = "Ordering_Completed"
	DocOrderingFailed         = "Ordering_Failed"
	DocDownloadSuccess        = "Download_Success"
	DocDownloadFailed         = "Download_Failed"
	DocSkippedNotNeeded       = "Skipped_Processing_Not_Needed"
	DocExtractionPrepFailed   = "Extraction_Preparation_Failed"
	DocExtractionError        = "Extraction_Processing_Error"
	DocExtractionNoData       = "Extraction_No_Data_Found"
	DocExtractionSuccess      = "Extraction_Success"
	DocProcessingError        = "Generic_Processing_Error"
)

// IsDocFinalForCase reports whether a relevant document's status counts as
// an acceptable end state when computing the final case status. Anything
// else forces Completed_With_Errors.
func IsDocFinalForCase(status string) bool {
	switch status {
	case DocExtractionSuccess, DocExtractionNoData, DocSkippedNotNeeded, DocSkippedRequiresPayment:
		return true
	}
	return false
}

// DocumentType is the category inferred from a document's title.
type DocumentType string

const (
	DocTypeFinalJudgment DocumentType = "Final_Judgment"
	DocTypeComplaint     DocumentType = "Complaint"
	DocTypeUnrelated     DocumentType = "Unrelated"
)

// DocumentSection identifies which portal section a document row came from.
type DocumentSection string

const (
	SectionPaid         DocumentSection = "paid"
	SectionCrowdSourced DocumentSection = "crowdsourced"
)
