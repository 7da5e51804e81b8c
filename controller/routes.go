package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Controllers groups the handlers mounted by RegisterRoutes.
type Controllers struct {
	Documents *DocumentController
	Clauses   *ClauseController
	Uploads   *UploadController
	Corpus    *CorpusController
}

// RegisterRoutes mounts every route. strict guards the endpoints that call
// the model or write to storage; global limits are applied by the caller.
func RegisterRoutes(router gin.IRouter, ctrl Controllers, strict gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.POST("/upload", strict, ctrl.Uploads.UploadDocument)
	router.POST("/convert-docx", ctrl.Uploads.ConvertDocx)

	router.POST("/get-clauses", strict, ctrl.Clauses.GetClauses)
	router.POST("/classify-clauses", strict, ctrl.Clauses.ClassifyClauses)
	router.POST("/create-summary", strict, ctrl.Clauses.CreateSummary)
	router.POST("/pipeline", strict, ctrl.Clauses.RunPipeline)

	router.POST("/vector-search", ctrl.Corpus.VectorSearch)
	router.POST("/pdf", strict, ctrl.Corpus.LoadPDF)

	router.GET("/documents", ctrl.Documents.GetAllDocuments)
	router.GET("/documents/:id", ctrl.Documents.GetDocument)
	router.GET("/documents/:id/file", ctrl.Documents.GetDocumentFile)
	router.GET("/search", ctrl.Documents.SearchDocuments)
}
