package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/queue"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/worker"
)

type ServiceHandler struct {
	cfg   *config.Config
	queue *queue.Queue
	pool  *worker.Pool
}

func NewServiceHandler(cfg *config.Config, q *queue.Queue, pool *worker.Pool) *ServiceHandler {
	return &ServiceHandler{cfg: cfg, queue: q, pool: pool}
}

// Status reports the orchestration state: queue depth, in-flight work and
// the worker pool configuration.
func (h *ServiceHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queue_depth":   h.queue.Len(),
		"active_tasks":  h.pool.ActiveCount(),
		"worker_pool":   h.cfg.Worker.PoolSize,
		"shutting_down": h.pool.ShuttingDown(),
		"idle":          h.pool.Idle(),
	})
}

// ConfigResponse is the operator-visible slice of the runtime
// configuration. Secrets and credentials are never echoed back.
type ConfigResponse struct {
	WorkerPoolSize            int      `json:"worker_pool_size"`
	SessionRetries            int      `json:"session_retries"`
	OrderChunkSize            int      `json:"order_chunk_size"`
	DownloadDir               string   `json:"download_dir"`
	FinalJudgmentKeywords     []string `json:"final_judgment_keywords"`
	ComplaintKeywords         []string `json:"complaint_keywords"`
	ExtractPartyAddresses     bool     `json:"extract_party_addresses"`
	ExtractorModel            string   `json:"extractor_model"`
	OrderAppearTimeoutSeconds int      `json:"order_appear_timeout_seconds"`
	ArtifactArchivingEnabled  bool     `json:"artifact_archiving_enabled"`
}

// GetConfig returns the current runtime configuration, read-only.
func (h *ServiceHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, ConfigResponse{
		WorkerPoolSize:            h.cfg.Worker.PoolSize,
		SessionRetries:            h.cfg.Worker.SessionRetries,
		OrderChunkSize:            h.cfg.Documents.OrderChunkSize,
		DownloadDir:               h.cfg.Documents.DownloadDir,
		FinalJudgmentKeywords:     h.cfg.Documents.FinalJudgmentKeywords,
		ComplaintKeywords:         h.cfg.Documents.ComplaintKeywords,
		ExtractPartyAddresses:     h.cfg.Facts.ExtractPartyAddresses,
		ExtractorModel:            h.cfg.Extractor.Model,
		OrderAppearTimeoutSeconds: h.cfg.Unicourt.OrderAppearTimeoutSeconds,
		ArtifactArchivingEnabled:  h.cfg.Minio.Enabled,
	})
}

// Restart asks every worker to rebuild its portal session. Honored only
// while nothing is queued or in flight.
func (h *ServiceHandler) Restart(c *gin.Context) {
	if err := h.pool.Restart(); err != nil {
		if errors.Is(err, worker.ErrNotIdle) {
			c.JSON(http.StatusConflict, gin.H{"error": "Cases are queued or processing; retry when idle"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Restart failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Worker sessions will be rebuilt"})
}
