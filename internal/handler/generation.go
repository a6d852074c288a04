package handler

import (
	"net/http"

	"inkflow-backend/internal/generation"
	"inkflow-backend/internal/model"
	"inkflow-backend/internal/utils"
	"inkflow-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type GenerationHandler struct {
	coord *generation.Coordinator
}

func NewGenerationHandler(coord *generation.Coordinator) *GenerationHandler {
	return &GenerationHandler{coord: coord}
}

// Start begins a fresh run and streams its progress callbacks back to the
// initiating context as SSE events until the run reaches a terminal state.
func (h *GenerationHandler) Start(c *gin.Context) {
	var req model.StartGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.coord.StartGeneration(req.Prompt, req.StreamCount, req.MaxTokens)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.streamProgress(c, run)
}

// Continue resumes all streams with their accumulated contents as context.
func (h *GenerationHandler) Continue(c *gin.Context) {
	var req model.ContinueGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.coord.ContinueGeneration(req.Contents)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.streamProgress(c, run)
}

func (h *GenerationHandler) streamProgress(c *gin.Context, run *generation.Run) {
	sseWriter := utils.NewSSEWriter(c.Writer)
	ctx := c.Request.Context()

	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				final := gin.H{
					"type":   "run_finished",
					"run_id": run.ID,
					"state":  string(run.State()),
				}
				if err := sseWriter.WriteJSON("status", final); err != nil {
					logger.Warnf("Failed to write final SSE status: %v", err)
				}
				sseWriter.Close()
				return
			}
			if err := sseWriter.WriteJSON("message", ev); err != nil {
				// The initiating tab is gone; the run keeps going for the
				// contexts reading the store and the broadcast channel.
				logger.Debugf("SSE write failed, detaching initiator: %v", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *GenerationHandler) Cancel(c *gin.Context) {
	cancelled := h.coord.Cancel()
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// Snapshot is the read path for other tabs: the persisted result set
// reconciled against the live run by content length.
func (h *GenerationHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": h.coord.Snapshot()})
}

func (h *GenerationHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Status())
}
