package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"calculations-api/internal/auth"
	"calculations-api/internal/calculator"
	"calculations-api/internal/metrics"
	"calculations-api/internal/models"
	"calculations-api/internal/repository"
)

// CalculationHandler serves the CRUD surface over stored calculations plus
// the non-persisting expression scratchpad.
type CalculationHandler struct {
	store   repository.CalculationRepository
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewCalculationHandler(store repository.CalculationRepository, m *metrics.Metrics, logger *zap.Logger) *CalculationHandler {
	return &CalculationHandler{store: store, metrics: m, log: logger}
}

type CreateCalculationRequest struct {
	Kind     string    `json:"kind" binding:"required"`
	Operands []float64 `json:"operands" binding:"required,min=2"`
}

// UpdateCalculationRequest replaces the operands; the kind of a stored
// calculation never changes.
type UpdateCalculationRequest struct {
	Operands []float64 `json:"operands" binding:"required,min=2"`
}

type ListCalculationsQuery struct {
	Kind  string `form:"kind"`
	Sort  string `form:"sort,default=desc" binding:"oneof=asc desc"`
	Limit int    `form:"limit,default=50" binding:"min=1,max=100"`
}

type EvaluateRequest struct {
	Expression string `json:"expression" binding:"required"`
}

func (h *CalculationHandler) Create(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req CreateCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, err := calculator.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := calculator.Compute(kind, req.Operands)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	calc := &models.Calculation{
		UserID:   userID,
		Kind:     string(kind),
		Operands: models.Operands(req.Operands),
		Result:   result,
	}
	if err := h.store.CreateCalculation(c.Request.Context(), calc); err != nil {
		h.log.Error("failed to create calculation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create calculation"})
		return
	}

	h.metrics.ObserveOperation(string(kind))
	c.JSON(http.StatusCreated, calc)
}

func (h *CalculationHandler) List(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var q ListCalculationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	calcs, err := h.store.ListCalculations(c.Request.Context(), userID, repository.ListFilter{
		Kind:      q.Kind,
		Ascending: q.Sort == "asc",
		Limit:     q.Limit,
	})
	if err != nil {
		h.log.Error("failed to list calculations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list calculations"})
		return
	}

	c.JSON(http.StatusOK, calcs)
}

func (h *CalculationHandler) Get(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	calc, err := h.store.GetCalculation(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		h.log.Error("failed to get calculation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get calculation"})
		return
	}

	c.JSON(http.StatusOK, calc)
}

func (h *CalculationHandler) Update(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	var req UpdateCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	calc, err := h.store.GetCalculation(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		h.log.Error("failed to get calculation for update", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update calculation"})
		return
	}

	kind, err := calculator.ParseKind(calc.Kind)
	if err != nil {
		h.log.Error("stored calculation has unknown kind", zap.String("kind", calc.Kind), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update calculation"})
		return
	}
	result, err := calculator.Compute(kind, req.Operands)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	calc.Operands = models.Operands(req.Operands)
	calc.Result = result
	if err := h.store.UpdateCalculation(c.Request.Context(), calc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		h.log.Error("failed to update calculation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update calculation"})
		return
	}

	h.metrics.ObserveOperation(calc.Kind)
	c.JSON(http.StatusOK, calc)
}

func (h *CalculationHandler) Delete(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	if err := h.store.DeleteCalculation(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		h.log.Error("failed to delete calculation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete calculation"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Evaluate computes a free-form expression without storing anything.
func (h *CalculationHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := calculator.EvaluateExpression(req.Expression)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.metrics.ObserveOperation("expression")
	c.JSON(http.StatusOK, gin.H{"expression": req.Expression, "result": result})
}
