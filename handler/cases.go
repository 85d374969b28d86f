package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/pkg/logger"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/queue"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/service"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/worker"
)

type CasesHandler struct {
	store     *service.CaseStore
	queue     *queue.Queue
	active    *queue.ActiveSet
	pool      *worker.Pool
	processor *service.CaseProcessor
	artifacts *service.ArtifactStore // nil when archiving is disabled
}

func NewCasesHandler(store *service.CaseStore, q *queue.Queue, active *queue.ActiveSet, pool *worker.Pool, processor *service.CaseProcessor, artifacts *service.ArtifactStore) *CasesHandler {
	return &CasesHandler{
		store:     store,
		queue:     q,
		active:    active,
		pool:      pool,
		processor: processor,
		artifacts: artifacts,
	}
}

type SubmitCaseRequest struct {
	CaseNumber        string `json:"case_number"`
	CaseNameForSearch string `json:"case_name_for_search"`
	InputCreditorName string `json:"input_creditor_name"`
	IsBusiness        bool   `json:"is_business"`
	CreditorType      string `json:"creditor_type"`
}

type SubmitBatchRequest struct {
	Cases []SubmitCaseRequest `json:"cases" binding:"required"`
}

type SubmitBatchResponse struct {
	Queued      int `json:"queued"`
	Resubmitted int `json:"resubmitted"`
	Skipped     int `json:"skipped"`
	Ignored     int `json:"ignored"`
	QueueDepth  int `json:"queue_depth"`
}

// Submit accepts a batch of cases. Per case: enqueue when the key is new
// (or only exists as an old durable record, which gets wiped first), skip
// when the key is already queued or being processed, ignore empty keys and
// duplicates within the batch.
func (h *CasesHandler) Submit(c *gin.Context) {
	if h.pool.ShuttingDown() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service is shutting down"})
		return
	}

	var req SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	var resp SubmitBatchResponse
	seen := make(map[string]bool, len(req.Cases))

	for _, in := range req.Cases {
		if in.CaseNumber == "" || seen[in.CaseNumber] {
			resp.Ignored++
			continue
		}
		seen[in.CaseNumber] = true

		if h.queue.Contains(in.CaseNumber) || h.active.Contains(in.CaseNumber) {
			resp.Skipped++
			continue
		}

		// A stale durable record for this key is replaced wholesale.
		resubmission := false
		if _, err := h.store.Get(ctx, in.CaseNumber); err == nil {
			if err := h.wipeCase(c, in.CaseNumber); err != nil {
				logger.Error(ctx, "failed to wipe prior case record",
					"case_number", in.CaseNumber, "error", err)
				resp.Ignored++
				continue
			}
			resubmission = true
		} else if !errors.Is(err, service.ErrNotFound) {
			logger.Error(ctx, "case lookup failed", "case_number", in.CaseNumber, "error", err)
			resp.Ignored++
			continue
		}

		newCase := &model.Case{
			CaseNumber:        in.CaseNumber,
			CaseNameForSearch: in.CaseNameForSearch,
			InputCreditorName: in.InputCreditorName,
			IsBusiness:        in.IsBusiness,
			CreditorType:      in.CreditorType,
			Status:            model.StatusQueued,
		}
		if err := h.store.Create(ctx, newCase); err != nil {
			logger.Error(ctx, "failed to create case", "case_number", in.CaseNumber, "error", err)
			resp.Ignored++
			continue
		}

		if err := h.queue.Enqueue(queue.Entry{CaseNumber: in.CaseNumber}); err != nil {
			logger.Warn(ctx, "enqueue rejected", "case_number", in.CaseNumber, "error", err)
			resp.Skipped++
			continue
		}

		if resubmission {
			resp.Resubmitted++
		} else {
			resp.Queued++
		}
	}

	resp.QueueDepth = h.queue.Len()
	c.JSON(http.StatusOK, resp)
}

// wipeCase deletes a case's durable record and leftover artifacts before a
// resubmission recreates it.
func (h *CasesHandler) wipeCase(c *gin.Context, caseNumber string) error {
	ctx := c.Request.Context()

	if err := h.processor.RemoveTempArtifacts(caseNumber); err != nil {
		return err
	}
	if h.artifacts != nil {
		if err := h.artifacts.RemoveCasePrefix(ctx, caseNumber); err != nil {
			return err
		}
	}
	if err := h.store.Delete(ctx, caseNumber); err != nil && !errors.Is(err, service.ErrNotFound) {
		return err
	}
	return nil
}

type CaseStatusResponse struct {
	CaseNumber string      `json:"case_number"`
	Status     string      `json:"status"`
	Case       *model.Case `json:"case,omitempty"`
}

// Status reports one case's live state: queue and active-set membership
// first, the durable record as fallback.
func (h *CasesHandler) Status(c *gin.Context) {
	caseNumber := c.Param("case_number")
	resp, ok := h.caseStatus(c, caseNumber)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type BatchStatusRequest struct {
	CaseNumbers []string `json:"case_numbers" binding:"required"`
}

// BatchStatus reports live state for many cases at once. Unknown keys map
// to a null entry rather than failing the whole request.
func (h *CasesHandler) BatchStatus(c *gin.Context) {
	var req BatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	results := make(map[string]*CaseStatusResponse, len(req.CaseNumbers))
	for _, cn := range req.CaseNumbers {
		if resp, ok := h.caseStatus(c, cn); ok {
			results[cn] = resp
		} else {
			results[cn] = nil
		}
	}
	c.JSON(http.StatusOK, gin.H{"cases": results})
}

// List returns every known case record.
func (h *CasesHandler) List(c *gin.Context) {
	cases, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cases"})
		return
	}
	if cases == nil {
		cases = []*model.Case{}
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases, "count": len(cases)})
}

func (h *CasesHandler) caseStatus(c *gin.Context, caseNumber string) (*CaseStatusResponse, bool) {
	record, err := h.store.Get(c.Request.Context(), caseNumber)
	if err != nil {
		return nil, false
	}

	status := record.Status
	switch {
	case h.active.Contains(caseNumber):
		status = model.StatusProcessing
	case h.queue.Contains(caseNumber):
		status = model.StatusQueued
	}

	return &CaseStatusResponse{
		CaseNumber: caseNumber,
		Status:     status,
		Case:       record,
	}, true
}
