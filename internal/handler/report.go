package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calculations-api/internal/auth"
	"calculations-api/internal/repository"
)

// ReportHandler serves aggregate views over a user's history.
type ReportHandler struct {
	store repository.CalculationRepository
	log   *zap.Logger
}

func NewReportHandler(store repository.CalculationRepository, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{store: store, log: logger}
}

// UsageReportResponse summarizes the caller's stored calculations.
// AverageResult and MostRecent are null when there is no history.
type UsageReportResponse struct {
	TotalCalculations int64            `json:"total_calculations"`
	ByKind            map[string]int64 `json:"by_kind"`
	AverageResult     *float64         `json:"average_result"`
	MostRecent        *time.Time       `json:"most_recent"`
}

func (h *ReportHandler) Usage(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	stats, err := h.store.UsageStats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("failed to build usage report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build usage report"})
		return
	}

	resp := UsageReportResponse{
		TotalCalculations: stats.Total,
		ByKind:            stats.ByKind,
		MostRecent:        stats.MostRecent,
	}
	if stats.AverageResult != nil {
		rounded := math.Round(*stats.AverageResult*100) / 100
		resp.AverageResult = &rounded
	}

	c.JSON(http.StatusOK, resp)
}
