package handler

import (
	"net/http"

	"projectcompanion/internal/derive"
	"projectcompanion/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewProjectHandler(st *store.Store, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{store: st, logger: logger}
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects := h.store.ListProjects()
	h.logger.Debug("ListProjects: success", zap.Int("project_count", len(projects)))
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	id := c.Param("id")
	project, err := h.store.GetProject(id)
	if err != nil {
		respondError(c, h.logger, "GetProject", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var draft store.ProjectDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.logger.Warn("CreateProject: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	project, err := h.store.CreateProject(c.Request.Context(), draft)
	if err != nil {
		respondError(c, h.logger, "CreateProject", err)
		return
	}

	h.logger.Info("CreateProject: success",
		zap.String("project_id", project.ID),
		zap.String("title", project.Title),
	)
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	id := c.Param("id")
	var upd store.ProjectUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.logger.Warn("UpdateProject: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	project, err := h.store.UpdateProject(c.Request.Context(), id, upd)
	if err != nil {
		respondError(c, h.logger, "UpdateProject", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteProject(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteProject", err)
		return
	}
	h.logger.Info("DeleteProject: success", zap.String("project_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetProjectProgress returns the completion percentage of a project's tasks.
func (h *ProjectHandler) GetProjectProgress(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetProject(id); err != nil {
		respondError(c, h.logger, "GetProjectProgress", err)
		return
	}

	tasks := h.store.ListTasks(store.TaskFilter{ProjectID: id})
	progress := derive.ProjectProgress(tasks, id)
	c.JSON(http.StatusOK, gin.H{
		"project_id": id,
		"progress":   progress,
		"task_count": len(tasks),
	})
}
