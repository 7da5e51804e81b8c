package controller

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Itish41/ndareview/logger"
	services "github.com/Itish41/ndareview/service"
)

// Corpus ingests and queries the reference corpus.
// *services.CorpusService implements it.
type Corpus interface {
	Ingest(ctx context.Context, location string) (*services.IngestReport, error)
	Search(ctx context.Context, query string, limit int) ([]services.CorpusHit, error)
}

type CorpusController struct {
	corpus Corpus
	limit  int
	log    *logger.Logger
}

func NewCorpusController(corpus Corpus, limit int, log *logger.Logger) *CorpusController {
	if limit < 1 {
		limit = 5
	}
	return &CorpusController{corpus: corpus, limit: limit, log: log.With("controller", "CorpusController")}
}

func (cc *CorpusController) VectorSearch(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		badRequest(c, "Query is required", nil)
		return
	}

	results, err := cc.corpus.Search(c.Request.Context(), req.Query, cc.limit)
	if err != nil {
		fail(c, cc.log, "Failed to perform vector search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

// LoadPDF ingests a reference PDF from a URL or server path.
func (cc *CorpusController) LoadPDF(c *gin.Context) {
	var req struct {
		FilePath string `json:"filePath"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		badRequest(c, "File path is required", nil)
		return
	}

	report, err := cc.corpus.Ingest(c.Request.Context(), req.FilePath)
	if err != nil {
		fail(c, cc.log, "Failed to load PDF", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}
