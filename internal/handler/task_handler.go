package handler

import (
	"net/http"
	"time"

	"projectcompanion/internal/derive"
	"projectcompanion/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TaskHandler struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewTaskHandler(st *store.Store, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{store: st, logger: logger, now: time.Now}
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter := store.TaskFilter{
		ProjectID:   c.Query("project_id"),
		MilestoneID: c.Query("milestone_id"),
		Status:      c.Query("status"),
	}
	tasks := h.store.ListTasks(filter)
	h.logger.Debug("ListTasks: success", zap.Int("task_count", len(tasks)))
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// ListTodayTasks returns the derived "Today" view across all projects.
func (h *TaskHandler) ListTodayTasks(c *gin.Context) {
	tasks := derive.TodayTasks(h.store.ListTasks(store.TaskFilter{}), h.now())
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.store.GetTask(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var draft store.TaskDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.logger.Warn("CreateTask: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	task, err := h.store.CreateTask(c.Request.Context(), draft)
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}

	h.logger.Info("CreateTask: success",
		zap.String("task_id", task.ID),
		zap.String("project_id", task.ProjectID),
		zap.String("title", task.Title),
	)
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id := c.Param("id")
	var upd store.TaskUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.logger.Warn("UpdateTask: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	task, err := h.store.UpdateTask(c.Request.Context(), id, upd)
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task and its whole subtask tree.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteTask(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	h.logger.Info("DeleteTask: success", zap.String("task_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TaskHandler) CompleteTask(c *gin.Context) {
	task, err := h.store.CompleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "CompleteTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UncompleteTask(c *gin.Context) {
	task, err := h.store.UncompleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "UncompleteTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// ToggleTaskComplete flips a task between done and its previous status.
func (h *TaskHandler) ToggleTaskComplete(c *gin.Context) {
	task, err := h.store.ToggleTaskComplete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "ToggleTaskComplete", err)
		return
	}
	c.JSON(http.StatusOK, task)
}
