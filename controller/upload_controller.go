package controller

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Itish41/ndareview/blob"
	"github.com/Itish41/ndareview/converter"
	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
	services "github.com/Itish41/ndareview/service"
	"github.com/Itish41/ndareview/staging"
)

// UploadController accepts raw uploads, converts legacy formats, stores the
// result in blob storage and stages the bytes for the extraction step.
type UploadController struct {
	conv      services.Converter
	blobs     blob.Store
	staging   staging.Store
	maxUpload int64
	log       *logger.Logger
	now       func() time.Time
}

func NewUploadController(conv services.Converter, blobs blob.Store, stage staging.Store, maxUpload int64, log *logger.Logger) *UploadController {
	return &UploadController{
		conv:      conv,
		blobs:     blobs,
		staging:   stage,
		maxUpload: maxUpload,
		log:       log.With("controller", "UploadController"),
		now:       time.Now,
	}
}

func (uc *UploadController) readFile(c *gin.Context) (*multipart.FileHeader, []byte, bool) {
	if uc.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, uc.maxUpload)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "Invalid file", err)
		return nil, nil, false
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Invalid file", err)
		return nil, nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "Invalid file", err)
		return nil, nil, false
	}
	if len(data) == 0 {
		badRequest(c, "Invalid file", fmt.Errorf("%s is empty", fh.Filename))
		return nil, nil, false
	}
	return fh, data, true
}

// UploadDocument handles the multipart upload of file, type and name.
func (uc *UploadController) UploadDocument(c *gin.Context) {
	fh, data, ok := uc.readFile(c)
	if !ok {
		return
	}
	fileType := strings.TrimSpace(c.PostForm("type"))
	name := strings.TrimSpace(c.PostForm("name"))
	if fileType == "" || name == "" {
		badRequest(c, "Missing type or name", nil)
		return
	}

	details := gin.H{
		"originalName": fh.Filename,
		"size":         len(data),
		"type":         fh.Header.Get("Content-Type"),
	}
	body := gin.H{
		"message": "File processed successfully",
		"details": details,
	}

	staged := model.FileData{Name: name, Type: fileType, Data: data}
	converted, err := uc.conv.Convert(c.Request.Context(), data, name)
	if err != nil {
		fail(c, uc.log, "Failed to convert document", err)
		return
	}
	if converted != nil && !converter.Canonical(name) {
		staged = model.FileData{Name: converter.PDFName(name), Type: "application/pdf", Data: converted}
		body["convertedFile"] = gin.H{
			"name": staged.Name,
			"type": staged.Type,
			"size": len(converted),
		}
	}

	key := blob.NewKey(uc.now(), staged.Name)
	if err := uc.blobs.Put(c.Request.Context(), key, staged.Data, staged.Type); err != nil {
		fail(c, uc.log, "Failed to store file", err)
		return
	}
	body["fileUrl"] = uc.blobs.URL(key)

	if uc.staging != nil {
		sf, err := uc.staging.Stage(c.Request.Context(), staged)
		if err != nil {
			fail(c, uc.log, "Failed to process file", err)
			return
		}
		body["stagingId"] = sf.ID
	}

	uc.log.Info("file uploaded", "name", name, "key", key, "size", len(data), "converted", body["convertedFile"] != nil)
	c.JSON(http.StatusOK, body)
}

// ConvertDocx renders a DOCX upload as HTML.
func (uc *UploadController) ConvertDocx(c *gin.Context) {
	_, data, ok := uc.readFile(c)
	if !ok {
		return
	}

	html, err := converter.DocxToHTML(data)
	if err != nil {
		fail(c, uc.log, "Error converting document", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content":  html,
		"messages": []string{},
	})
}
