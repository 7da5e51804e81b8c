package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
	services "github.com/Itish41/ndareview/service"
	"github.com/Itish41/ndareview/staging"
)

// PipelineRunner drives an upload to a temporary record.
type PipelineRunner interface {
	Run(ctx context.Context, in services.PipelineInput) (*services.PipelineRun, error)
}

// Summarizer extracts and stores the clauses of a committed document.
type Summarizer interface {
	SummarizeDocument(ctx context.Context, recordID, fileURL string) (*services.Extraction, error)
}

// ClauseController exposes clause extraction, classification and the upload
// pipeline.
type ClauseController struct {
	pipeline   PipelineRunner
	summarizer Summarizer
	classifier services.Classifier
	staging    staging.Store
	maxUpload  int64
	log        *logger.Logger
}

func NewClauseController(pipeline PipelineRunner, summarizer Summarizer, classifier services.Classifier, stage staging.Store, maxUpload int64, log *logger.Logger) *ClauseController {
	return &ClauseController{
		pipeline:   pipeline,
		summarizer: summarizer,
		classifier: classifier,
		staging:    stage,
		maxUpload:  maxUpload,
		log:        log.With("controller", "ClauseController"),
	}
}

type getClausesRequest struct {
	FileData  *model.FileData `json:"fileData"`
	StagingID string          `json:"stagingId"`
}

// GetClauses extracts clauses from inline bytes or a staged upload into a
// temporary document.
func (cc *ClauseController) GetClauses(c *gin.Context) {
	var req getClausesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	var file model.FileData
	switch {
	case req.FileData != nil && len(req.FileData.Data) > 0:
		file = *req.FileData
	case req.StagingID != "":
		if cc.staging == nil {
			badRequest(c, "Staging is not configured", nil)
			return
		}
		staged, err := cc.staging.Fetch(c.Request.Context(), req.StagingID)
		if err != nil {
			fail(c, cc.log, "Staged file not available", err)
			return
		}
		file = model.FileData{Name: staged.Name, Type: staged.Type, Data: staged.Data}
	default:
		badRequest(c, "No file data provided", nil)
		return
	}
	if strings.TrimSpace(file.Name) == "" {
		badRequest(c, "File name is required", nil)
		return
	}

	run, err := cc.pipeline.Run(c.Request.Context(), services.PipelineInput{File: &file})
	if err != nil {
		fail(c, cc.log, "Failed to process file data", err)
		return
	}

	if req.StagingID != "" {
		if err := cc.staging.Drop(c.Request.Context(), req.StagingID); err != nil {
			cc.log.Warn("failed to drop staged file", "staging_id", req.StagingID, "error", err)
		}
	}

	body := gin.H{"success": true, "recordId": run.RecordID}
	if run.FailedClauses > 0 {
		body["failedClauses"] = run.FailedClauses
	}
	c.JSON(http.StatusOK, body)
}

type classifyRequest struct {
	Clauses *[]model.ClauseInput `json:"clauses"`
}

func (cc *ClauseController) ClassifyClauses(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid clauses", err)
		return
	}
	if req.Clauses == nil {
		badRequest(c, "No clauses provided", nil)
		return
	}
	seen := make(map[string]struct{}, len(*req.Clauses))
	for i, cl := range *req.Clauses {
		id := strings.TrimSpace(cl.ID)
		if id == "" {
			badRequest(c, "Invalid clauses", fmt.Errorf("clause at position %d has no id", i))
			return
		}
		if _, dup := seen[id]; dup {
			badRequest(c, "Invalid clauses", fmt.Errorf("clause id %q appears more than once", id))
			return
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(cl.Content) == "" {
			badRequest(c, "Invalid clauses", fmt.Errorf("clause %q at position %d has no content", cl.ID, i))
			return
		}
	}

	classified, err := cc.classifier.Classify(c.Request.Context(), *req.Clauses)
	if err != nil {
		fail(c, cc.log, "Failed to classify clauses", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"classifiedClauses": classified,
	})
}

type summaryRequest struct {
	RecordID string `json:"recordId"`
	FileURL  string `json:"fileUrl"`
}

func (cc *ClauseController) CreateSummary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if req.RecordID == "" || req.FileURL == "" {
		badRequest(c, "Missing recordId or fileUrl", nil)
		return
	}

	extraction, err := cc.summarizer.SummarizeDocument(c.Request.Context(), req.RecordID, req.FileURL)
	if err != nil {
		fail(c, cc.log, "Failed to create summary", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": extraction.Summary,
		"clauses": extraction.Clauses,
	})
}

// RunPipeline accepts a multipart file or a text field and reports every
// state the run went through.
func (cc *ClauseController) RunPipeline(c *gin.Context) {
	if cc.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cc.maxUpload)
	}

	var in services.PipelineInput
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "Invalid file", err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			badRequest(c, "Invalid file", err)
			return
		}
		if len(data) == 0 {
			badRequest(c, "Invalid file", fmt.Errorf("%s is empty", fh.Filename))
			return
		}
		in.File = &model.FileData{Name: fh.Filename, Type: fh.Header.Get("Content-Type"), Data: data}
	} else {
		in.Text = c.PostForm("text")
	}
	if in.File == nil && strings.TrimSpace(in.Text) == "" {
		badRequest(c, "No file or text provided", nil)
		return
	}

	run, err := cc.pipeline.Run(c.Request.Context(), in)
	if err != nil {
		status := statusFor(err)
		cc.log.Warn("pipeline run failed", "state", run.State, "error", err)
		c.JSON(status, gin.H{
			"error":       run.Message,
			"details":     err.Error(),
			"state":       run.State,
			"transitions": run.Transitions,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"recordId":      run.RecordID,
		"state":         run.State,
		"transitions":   run.Transitions,
		"failedClauses": run.FailedClauses,
	})
}
