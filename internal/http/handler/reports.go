package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/edirooss/slowdog/internal/http/dto"
	"github.com/edirooss/slowdog/internal/watchdog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportStore is where the reports API reads from: the process-local
// sink.MemorySink, or sink.RedisReports when reports are shared in Redis.
type ReportStore interface {
	List(ctx context.Context, limit int) ([]*watchdog.Report, error)
	Lookup(ctx context.Context, id uuid.UUID) (*watchdog.Report, bool, error)
	Count(ctx context.Context) (int, error)
}

// ReportsHandler serves retained reports.
type ReportsHandler struct {
	log   *zap.Logger
	store ReportStore
}

func NewReportsHandler(log *zap.Logger, store ReportStore) *ReportsHandler {
	return &ReportsHandler{
		log:   log.Named("reports"),
		store: store,
	}
}

// List returns report summaries, newest first. ?limit=N caps the result.
func (h *ReportsHandler) List(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	reports, err := h.store.List(ctx, limit)
	if err != nil {
		h.log.Error("failed to list reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list reports"})
		return
	}
	total, err := h.store.Count(ctx)
	if err != nil {
		h.log.Warn("failed to count reports", zap.Error(err))
		total = len(reports)
	}

	out := make([]dto.ReportSummary, 0, len(reports))
	for _, r := range reports {
		out = append(out, dto.NewReportSummary(r))
	}

	c.Header("X-Total-Count", strconv.Itoa(total))
	c.JSON(http.StatusOK, out)
}

// Get returns one report's full text.
func (h *ReportsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid report id"})
		return
	}

	r, ok, err := h.store.Lookup(c.Request.Context(), id)
	if err != nil {
		h.log.Error("failed to look up report", zap.Stringer("report_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to look up report"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "report not found"})
		return
	}
	c.String(http.StatusOK, r.Text())
}
