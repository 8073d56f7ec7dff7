package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoformat-service/backend/internal/collab"
)

type DocumentHandler struct {
	svc collab.Service
}

func NewDocumentHandler(svc collab.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Register 挂到 /editor 分组下
func (h *DocumentHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/documents/:docId", h.GetDocument)
	rg.POST("/documents/:docId/edits", h.SubmitEdit)
	rg.POST("/documents/:docId/undo", h.Undo)
	rg.PUT("/documents/:docId/recording", h.SetRecording)
}

type recordingRequest struct {
	Recording *bool `json:"recording"`
}

// GetDocument 第一次访问时从存储恢复
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	commit, err := h.svc.Open(c.Request.Context(), c.Param("docId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commit.View())
}

func (h *DocumentHandler) SubmitEdit(c *gin.Context) {
	var edit collab.Edit
	if err := c.ShouldBindJSON(&edit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edit body"})
		return
	}
	docID := c.Param("docId")
	if _, err := h.svc.Open(c.Request.Context(), docID); err != nil {
		writeError(c, err)
		return
	}
	commit, err := h.svc.Submit(c.Request.Context(), docID, edit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commit.View())
}

func (h *DocumentHandler) Undo(c *gin.Context) {
	commit, err := h.svc.Undo(c.Request.Context(), c.Param("docId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commit.View())
}

func (h *DocumentHandler) SetRecording(c *gin.Context) {
	var req recordingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Recording == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recording flag missing"})
		return
	}
	docID := c.Param("docId")
	if _, err := h.svc.Open(c.Request.Context(), docID); err != nil {
		writeError(c, err)
		return
	}
	if err := h.svc.SetRecording(c.Request.Context(), docID, *req.Recording); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "recording": *req.Recording})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, collab.ErrUnknownEditKind), errors.Is(err, collab.ErrInvalidEdit):
		status = http.StatusBadRequest
	case errors.Is(err, collab.ErrDocumentNotOpen):
		status = http.StatusNotFound
	case errors.Is(err, collab.ErrNothingToUndo):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
