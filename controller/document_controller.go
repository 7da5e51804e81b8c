package controller

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
	"github.com/Itish41/ndareview/search"
	services "github.com/Itish41/ndareview/service"
)

// DocumentReader is the read side used by DocumentController.
// *services.DocumentService implements it.
type DocumentReader interface {
	ListDocuments(ctx context.Context, temporary bool) ([]model.Record, error)
	GetDocumentView(ctx context.Context, id string, temporary bool) (*services.DocumentView, error)
	ReadFile(ctx context.Context, id string, temporary bool) ([]byte, model.Record, error)
	SearchDocuments(ctx context.Context, query string, limit int) ([]search.Hit, error)
}

// DocumentController serves stored documents, their clauses and files.
type DocumentController struct {
	service DocumentReader
	log     *logger.Logger
}

func NewDocumentController(service DocumentReader, log *logger.Logger) *DocumentController {
	return &DocumentController{service: service, log: log.With("controller", "DocumentController")}
}

// GetAllDocuments lists the permanent or temporary collection.
func (dc *DocumentController) GetAllDocuments(c *gin.Context) {
	temporary, ok := temporaryParam(c)
	if !ok {
		return
	}

	docs, err := dc.service.ListDocuments(c.Request.Context(), temporary)
	if err != nil {
		fail(c, dc.log, "Failed to retrieve documents", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     len(docs),
	})
}

// GetDocument returns a document with its classified clauses. Classification
// failures do not fail the request; they surface as classificationError.
func (dc *DocumentController) GetDocument(c *gin.Context) {
	temporary, ok := temporaryParam(c)
	if !ok {
		return
	}

	view, err := dc.service.GetDocumentView(c.Request.Context(), c.Param("id"), temporary)
	if err != nil {
		fail(c, dc.log, "Failed to load document", err)
		return
	}

	body := gin.H{
		"document": view.Document,
		"clauses":  view.Clauses,
	}
	if view.ClassificationError != "" {
		body["classificationError"] = view.ClassificationError
	}
	c.JSON(http.StatusOK, body)
}

// GetDocumentFile streams the stored file bytes.
func (dc *DocumentController) GetDocumentFile(c *gin.Context) {
	temporary, ok := temporaryParam(c)
	if !ok {
		return
	}

	data, rec, err := dc.service.ReadFile(c.Request.Context(), c.Param("id"), temporary)
	if err != nil {
		fail(c, dc.log, "Failed to read document file", err)
		return
	}

	contentType := rec.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "inline; filename="+strconv.Quote(rec.Name))
	c.Data(http.StatusOK, contentType, data)
}

func (dc *DocumentController) SearchDocuments(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		badRequest(c, "Query parameter 'q' is required", nil)
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "Invalid limit", err)
			return
		}
		limit = n
	}

	results, err := dc.service.SearchDocuments(c.Request.Context(), query, limit)
	if err != nil {
		fail(c, dc.log, "Search failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Search completed successfully",
		"results": results,
	})
}
