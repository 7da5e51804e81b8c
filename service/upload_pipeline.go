package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Itish41/ndareview/converter"
	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
)

// PipelineState is a step of the upload pipeline.
type PipelineState string

const (
	StateIdle              PipelineState = "idle"
	StateUploading         PipelineState = "uploading"
	StateConverting        PipelineState = "converting"
	StateExtractingClauses PipelineState = "extracting-clauses"
	StateDone              PipelineState = "done"
	StateFailed            PipelineState = "failed"
)

// PastedTextName is the synthetic file name free text is wrapped into.
const PastedTextName = "pasted-text.txt"

// Transition records one state change of a run.
type Transition struct {
	From PipelineState `json:"from"`
	To   PipelineState `json:"to"`
}

// PipelineInput is either a file or a block of free text.
type PipelineInput struct {
	File *model.FileData
	Text string
}

// PipelineRun is the outcome of one pipeline execution.
type PipelineRun struct {
	State         PipelineState `json:"state"`
	RecordID      string        `json:"recordId,omitempty"`
	Message       string        `json:"message,omitempty"`
	FailedClauses int           `json:"failedClauses,omitempty"`
	Transitions   []Transition  `json:"transitions"`

	span trace.Span
}

func (r *PipelineRun) moveTo(next PipelineState) {
	r.Transitions = append(r.Transitions, Transition{From: r.State, To: next})
	r.State = next
	if r.span != nil {
		r.span.AddEvent(string(next))
	}
}

// TemporaryExtractor persists an extraction into the temporary collection.
type TemporaryExtractor interface {
	ExtractToTemporary(ctx context.Context, file model.FileData) (*ExtractResult, error)
}

// UploadPipeline drives one upload from raw input to a temporary record.
type UploadPipeline struct {
	conv      Converter
	extractor TemporaryExtractor
	log       *logger.Logger
}

func NewUploadPipeline(conv Converter, extractor TemporaryExtractor, log *logger.Logger) *UploadPipeline {
	return &UploadPipeline{conv: conv, extractor: extractor, log: log.With("service", "UploadPipeline")}
}

// Run executes the pipeline. The returned run is always populated; err is the
// underlying cause when the run ends in StateFailed. Nothing is retried and
// records created before a failure are left in place.
func (p *UploadPipeline) Run(ctx context.Context, in PipelineInput) (*PipelineRun, error) {
	ctx, span := otel.Tracer("ndareview/service").Start(ctx, "UploadPipeline.Run")
	defer span.End()
	run := &PipelineRun{State: StateIdle, span: span}

	fail := func(msg string, err error) (*PipelineRun, error) {
		run.moveTo(StateFailed)
		run.Message = msg
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		p.log.Warn("upload pipeline failed", "message", msg, "error", err, "transitions", len(run.Transitions))
		return run, err
	}

	file, err := normalizeInput(in)
	if err != nil {
		if in.File != nil {
			return fail("Invalid file", err)
		}
		return fail("No file or text provided", err)
	}
	span.SetAttributes(attribute.String("file.name", file.Name), attribute.Int("file.size", len(file.Data)))
	run.moveTo(StateUploading)

	run.moveTo(StateConverting)
	converted, err := p.conv.Convert(ctx, file.Data, file.Name)
	if err != nil {
		return fail("Failed to convert document", err)
	}
	if converted != nil && !converter.Canonical(file.Name) {
		file = model.FileData{Name: converter.PDFName(file.Name), Type: mimePDF, Data: converted}
	}

	run.moveTo(StateExtractingClauses)
	res, err := p.extractor.ExtractToTemporary(ctx, file)
	if err != nil {
		return fail(extractionMessage(err), err)
	}
	if res == nil || res.RecordID == "" {
		err := errors.New("extraction returned no record id")
		return fail("Failed to process document", err)
	}

	run.RecordID = res.RecordID
	run.FailedClauses = res.FailedClauses
	span.SetAttributes(
		attribute.String("record.id", res.RecordID),
		attribute.Int("clauses.failed", res.FailedClauses),
	)
	run.moveTo(StateDone)
	return run, nil
}

func normalizeInput(in PipelineInput) (model.FileData, error) {
	if in.File != nil {
		f := *in.File
		if strings.TrimSpace(f.Name) == "" {
			return model.FileData{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
		}
		if len(f.Data) == 0 {
			return model.FileData{}, fmt.Errorf("%w: %s is empty", ErrInvalidInput, f.Name)
		}
		return f, nil
	}
	if strings.TrimSpace(in.Text) != "" {
		return model.FileData{Name: PastedTextName, Type: mimeText, Data: []byte(in.Text)}, nil
	}
	return model.FileData{}, fmt.Errorf("%w: no file or text provided", ErrInvalidInput)
}

func extractionMessage(err error) string {
	switch {
	case errors.Is(err, ErrMalformedExtraction):
		return "Could not extract clauses from the document"
	case errors.Is(err, ErrUnsupportedDocument):
		return "Unsupported document type"
	}
	return "Failed to process document"
}
