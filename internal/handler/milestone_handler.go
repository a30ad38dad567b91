package handler

import (
	"net/http"

	"projectcompanion/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MilestoneHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewMilestoneHandler(st *store.Store, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{store: st, logger: logger}
}

// ListMilestones returns the milestones of one project, ordered by phase.
func (h *MilestoneHandler) ListMilestones(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		h.logger.Warn("ListMilestones: project_id is required")
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id required"})
		return
	}

	milestones := h.store.ListMilestones(projectID)
	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

func (h *MilestoneHandler) GetMilestone(c *gin.Context) {
	milestone, err := h.store.GetMilestone(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetMilestone", err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

func (h *MilestoneHandler) CreateMilestone(c *gin.Context) {
	var draft store.MilestoneDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.logger.Warn("CreateMilestone: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	milestone, err := h.store.CreateMilestone(c.Request.Context(), draft)
	if err != nil {
		respondError(c, h.logger, "CreateMilestone", err)
		return
	}

	h.logger.Info("CreateMilestone: success",
		zap.String("milestone_id", milestone.ID),
		zap.String("project_id", milestone.ProjectID),
	)
	c.JSON(http.StatusCreated, milestone)
}

func (h *MilestoneHandler) UpdateMilestone(c *gin.Context) {
	id := c.Param("id")
	var upd store.MilestoneUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.logger.Warn("UpdateMilestone: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	milestone, err := h.store.UpdateMilestone(c.Request.Context(), id, upd)
	if err != nil {
		respondError(c, h.logger, "UpdateMilestone", err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

// DeleteMilestone removes a milestone. Tasks that referenced it stay and are
// detached.
func (h *MilestoneHandler) DeleteMilestone(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteMilestone(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteMilestone", err)
		return
	}
	h.logger.Info("DeleteMilestone: success", zap.String("milestone_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *MilestoneHandler) ToggleMilestoneComplete(c *gin.Context) {
	milestone, err := h.store.ToggleMilestoneComplete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "ToggleMilestoneComplete", err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}
