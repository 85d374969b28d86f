package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
)

// ErrNotFound is returned when a case number has no row in the store.
var ErrNotFound = errors.New("case not found")

// FactField names a first-writer-wins scalar fact column.
type FactField string

const (
	FactOriginalCreditorName FactField = "original_creditor_name"
	FactCreditorAddress      FactField = "creditor_address"
	FactRegistrationState    FactField = "registration_state"
)

const schema = `
CREATE TABLE IF NOT EXISTS cases (
	case_number TEXT PRIMARY KEY,
	case_name_for_search TEXT NOT NULL,
	input_creditor_name TEXT NOT NULL,
	is_business INTEGER NOT NULL DEFAULT 0,
	creditor_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	unicourt_case_name TEXT NOT NULL DEFAULT '',
	unicourt_case_number TEXT NOT NULL DEFAULT '',
	unicourt_case_url TEXT NOT NULL DEFAULT '',
	original_creditor_name TEXT NOT NULL DEFAULT '',
	original_creditor_name_source_doc TEXT NOT NULL DEFAULT '',
	creditor_address TEXT NOT NULL DEFAULT '',
	creditor_address_source_doc TEXT NOT NULL DEFAULT '',
	registration_state TEXT NOT NULL DEFAULT '',
	registration_state_source_doc TEXT NOT NULL DEFAULT '',
	associated_parties TEXT NOT NULL DEFAULT '[]',
	party_addresses TEXT NOT NULL DEFAULT '[]',
	documents TEXT NOT NULL DEFAULT '[]',
	submitted_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// CaseStore persists cases in SQLite. Every mutation updates updated_at.
type CaseStore struct {
	db *sql.DB
}

// NewCaseStore opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for tests.
func NewCaseStore(path string) (*CaseStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite handles one writer at a time; with the worker pool writing
	// concurrently we serialize on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &CaseStore{db: db}, nil
}

func (s *CaseStore) Close() error {
	return s.db.Close()
}

// Create inserts a new case row. The case number must not already exist.
func (s *CaseStore) Create(ctx context.Context, c *model.Case) error {
	parties, err := json.Marshal(sliceOrEmpty(c.AssociatedParties))
	if err != nil {
		return err
	}
	addresses, err := json.Marshal(addressesOrEmpty(c.PartyAddresses))
	if err != nil {
		return err
	}
	docs, err := json.Marshal(docsOrEmpty(c.Documents))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = now
	}
	c.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cases (
			case_number, case_name_for_search, input_creditor_name,
			is_business, creditor_type, status,
			unicourt_case_name, unicourt_case_number, unicourt_case_url,
			original_creditor_name, original_creditor_name_source_doc,
			creditor_address, creditor_address_source_doc,
			registration_state, registration_state_source_doc,
			associated_parties, party_addresses, documents,
			submitted_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CaseNumber, c.CaseNameForSearch, c.InputCreditorName,
		c.IsBusiness, c.CreditorType, c.Status,
		c.UnicourtCaseName, c.UnicourtCaseNumber, c.UnicourtCaseURL,
		c.OriginalCreditorName, c.OriginalCreditorNameSourceDoc,
		c.CreditorAddress, c.CreditorAddressSourceDoc,
		c.RegistrationState, c.RegistrationStateSourceDoc,
		string(parties), string(addresses), string(docs),
		c.SubmittedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case %s: %w", c.CaseNumber, err)
	}
	return nil
}

// Get returns the case with the given case number, or ErrNotFound.
func (s *CaseStore) Get(ctx context.Context, caseNumber string) (*model.Case, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT case_number, case_name_for_search, input_creditor_name,
			is_business, creditor_type, status,
			unicourt_case_name, unicourt_case_number, unicourt_case_url,
			original_creditor_name, original_creditor_name_source_doc,
			creditor_address, creditor_address_source_doc,
			registration_state, registration_state_source_doc,
			associated_parties, party_addresses, documents,
			submitted_at, updated_at
		FROM cases WHERE case_number = ?`, caseNumber)
	return scanCase(row)
}

// List returns all cases ordered by submission time.
func (s *CaseStore) List(ctx context.Context) ([]*model.Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_number, case_name_for_search, input_creditor_name,
			is_business, creditor_type, status,
			unicourt_case_name, unicourt_case_number, unicourt_case_url,
			original_creditor_name, original_creditor_name_source_doc,
			creditor_address, creditor_address_source_doc,
			registration_state, registration_state_source_doc,
			associated_parties, party_addresses, documents,
			submitted_at, updated_at
		FROM cases ORDER BY submitted_at, case_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*model.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Delete removes the case row. Deleting an absent case returns ErrNotFound.
func (s *CaseStore) Delete(ctx context.Context, caseNumber string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cases WHERE case_number = ?`, caseNumber)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets the case status.
func (s *CaseStore) UpdateStatus(ctx context.Context, caseNumber, status string) error {
	return s.exec(ctx, caseNumber, `
		UPDATE cases SET status = ?, updated_at = ? WHERE case_number = ?`,
		status, time.Now().UTC(), caseNumber)
}

// UpdatePortalDetails records the case name, number and URL discovered on
// the portal.
func (s *CaseStore) UpdatePortalDetails(ctx context.Context, caseNumber, name, number, url string) error {
	return s.exec(ctx, caseNumber, `
		UPDATE cases SET unicourt_case_name = ?, unicourt_case_number = ?,
			unicourt_case_url = ?, updated_at = ?
		WHERE case_number = ?`,
		name, number, url, time.Now().UTC(), caseNumber)
}

// UpdateParties replaces the associated-parties list.
func (s *CaseStore) UpdateParties(ctx context.Context, caseNumber string, parties []string) error {
	data, err := json.Marshal(sliceOrEmpty(parties))
	if err != nil {
		return err
	}
	return s.exec(ctx, caseNumber, `
		UPDATE cases SET associated_parties = ?, updated_at = ? WHERE case_number = ?`,
		string(data), time.Now().UTC(), caseNumber)
}

// SaveFact writes a scalar fact and its source document, but only when the
// fact is still empty. It returns true when this call was the writer.
func (s *CaseStore) SaveFact(ctx context.Context, caseNumber string, field FactField, value, sourceDoc string) (bool, error) {
	if value == "" {
		return false, nil
	}

	var query string
	switch field {
	case FactOriginalCreditorName:
		query = `UPDATE cases SET original_creditor_name = ?,
			original_creditor_name_source_doc = ?, updated_at = ?
			WHERE case_number = ? AND original_creditor_name = ''`
	case FactCreditorAddress:
		query = `UPDATE cases SET creditor_address = ?,
			creditor_address_source_doc = ?, updated_at = ?
			WHERE case_number = ? AND creditor_address = ''`
	case FactRegistrationState:
		query = `UPDATE cases SET registration_state = ?,
			registration_state_source_doc = ?, updated_at = ?
			WHERE case_number = ? AND registration_state = ''`
	default:
		return false, fmt.Errorf("unknown fact field %q", field)
	}

	res, err := s.db.ExecContext(ctx, query, value, sourceDoc, time.Now().UTC(), caseNumber)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendPartyAddress adds a resolved party address. A (name, address) pair
// already present is skipped, and a party keeps only its first address.
func (s *CaseStore) AppendPartyAddress(ctx context.Context, caseNumber string, pa model.PartyAddress) (bool, error) {
	c, err := s.Get(ctx, caseNumber)
	if err != nil {
		return false, err
	}

	for _, existing := range c.PartyAddresses {
		if existing.Name == pa.Name {
			return false, nil
		}
	}

	data, err := json.Marshal(append(c.PartyAddresses, pa))
	if err != nil {
		return false, err
	}
	if err := s.exec(ctx, caseNumber, `
		UPDATE cases SET party_addresses = ?, updated_at = ? WHERE case_number = ?`,
		string(data), time.Now().UTC(), caseNumber); err != nil {
		return false, err
	}
	return true, nil
}

// SetDocuments replaces the whole document summary list.
func (s *CaseStore) SetDocuments(ctx context.Context, caseNumber string, docs []model.DocumentOutcome) error {
	data, err := json.Marshal(docsOrEmpty(docs))
	if err != nil {
		return err
	}
	return s.exec(ctx, caseNumber, `
		UPDATE cases SET documents = ?, updated_at = ? WHERE case_number = ?`,
		string(data), time.Now().UTC(), caseNumber)
}

// UpsertDocumentOutcome updates the summary entry matching the document's
// portal key, falling back to a name match, and appends when neither hits.
// The name fallback ignores the stored key: an ordered paid document
// reappears in the CrowdSourced section under a fresh key, and without it
// the stale Ordering_Completed row would survive next to the new one. The
// newest key wins on a name match.
func (s *CaseStore) UpsertDocumentOutcome(ctx context.Context, caseNumber string, doc model.DocumentOutcome) error {
	c, err := s.Get(ctx, caseNumber)
	if err != nil {
		return err
	}

	matched := false
	for i := range c.Documents {
		if doc.PortalKey != "" && c.Documents[i].PortalKey == doc.PortalKey {
			c.Documents[i] = doc
			matched = true
			break
		}
	}
	if !matched {
		for i := range c.Documents {
			if c.Documents[i].Name == doc.Name {
				c.Documents[i] = doc
				matched = true
				break
			}
		}
	}
	if !matched {
		c.Documents = append(c.Documents, doc)
	}

	return s.SetDocuments(ctx, caseNumber, c.Documents)
}

func (s *CaseStore) exec(ctx context.Context, caseNumber, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*model.Case, error) {
	var c model.Case
	var parties, addresses, docs string

	err := row.Scan(
		&c.CaseNumber, &c.CaseNameForSearch, &c.InputCreditorName,
		&c.IsBusiness, &c.CreditorType, &c.Status,
		&c.UnicourtCaseName, &c.UnicourtCaseNumber, &c.UnicourtCaseURL,
		&c.OriginalCreditorName, &c.OriginalCreditorNameSourceDoc,
		&c.CreditorAddress, &c.CreditorAddressSourceDoc,
		&c.RegistrationState, &c.RegistrationStateSourceDoc,
		&parties, &addresses, &docs,
		&c.SubmittedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(parties), &c.AssociatedParties); err != nil {
		return nil, fmt.Errorf("decode associated_parties for %s: %w", c.CaseNumber, err)
	}
	if err := json.Unmarshal([]byte(addresses), &c.PartyAddresses); err != nil {
		return nil, fmt.Errorf("decode party_addresses for %s: %w", c.CaseNumber, err)
	}
	if err := json.Unmarshal([]byte(docs), &c.Documents); err != nil {
		return nil, fmt.Errorf("decode documents for %s: %w", c.CaseNumber, err)
	}
	return &c, nil
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func addressesOrEmpty(s []model.PartyAddress) []model.PartyAddress {
	if s == nil {
		return []model.PartyAddress{}
	}
	return s
}

func docsOrEmpty(s []model.DocumentOutcome) []model.DocumentOutcome {
	if s == nil {
		return []model.DocumentOutcome{}
	}
	return s
}
