package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Itish41/ndareview/llm"
	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
	"github.com/Itish41/ndareview/store"
)

const threeClauses = `{"summary":"Mutual NDA between A and B","clauses":[
	{"category":"confidentiality","content":"Each party keeps the other's information secret."},
	{"category":"termination","content":"Either party may terminate with 30 days notice."},
	{"category":"governance","content":"Governed by the laws of Delaware."}
]}`

func newExtractionFixture(t *testing.T) (*ExtractionService, *MockGenerator, *store.GormStore, *memBlobs, *recordingIndexer) {
	t.Helper()
	gen := new(MockGenerator)
	st := newTestStore(t)
	blobs := newMemBlobs()
	idx := &recordingIndexer{}
	svc := NewExtractionService(gen, st, blobs, idx, logger.Nop(), 4)
	return svc, gen, st, blobs, idx
}

func TestExtractionService_ExtractToTemporary(t *testing.T) {
	ctx := context.Background()
	pdf := []byte("%PDF-1.7 fake body")

	tests := []struct {
		name        string
		file        model.FileData
		answer      string
		wantClauses int
		matchReq    func(llm.ObjectRequest) bool
	}{
		{
			name:        "pdf is attached as a file part",
			file:        model.FileData{Name: "nda.pdf", Type: "application/pdf", Data: pdf},
			answer:      threeClauses,
			wantClauses: 3,
			matchReq: func(r llm.ObjectRequest) bool {
				return len(r.Attachments) == 1 &&
					r.Attachments[0].MediaType == "application/pdf" &&
					string(r.Attachments[0].Data) == string(pdf)
			},
		},
		{
			name:        "plain text is sent as text",
			file:        model.FileData{Name: PastedTextName, Type: "text/plain", Data: []byte("The recipient shall not disclose.")},
			answer:      `{"summary":"short","clauses":[{"category":"confidentiality","content":"The recipient shall not disclose."}]}`,
			wantClauses: 1,
			matchReq: func(r llm.ObjectRequest) bool {
				return len(r.Attachments) == 1 && r.Attachments[0].Text == "The recipient shall not disclose."
			},
		},
		{
			name:        "no extractable clauses",
			file:        model.FileData{Name: "blank.pdf", Type: "application/pdf", Data: pdf},
			answer:      `{"summary":"Two pages without obligations","clauses":[]}`,
			wantClauses: 0,
			matchReq:    func(llm.ObjectRequest) bool { return true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gen, st, blobs, idx := newExtractionFixture(t)
			gen.On("GenerateObject", "clause_extraction", mock.MatchedBy(tt.matchReq)).Return(tt.answer, nil).Once()

			res, err := svc.ExtractToTemporary(ctx, tt.file)
			require.NoError(t, err)
			require.NotEmpty(t, res.RecordID)
			assert.Len(t, res.Clauses, tt.wantClauses)
			assert.Zero(t, res.FailedClauses)

			rec, err := st.GetRecord(ctx, model.CollectionTemporaryDocuments, res.RecordID)
			require.NoError(t, err)
			assert.Equal(t, res.Summary, rec.Summary)
			assert.True(t, rec.Temporary)

			persisted, err := st.ListClauses(ctx, model.CollectionTemporaryDocuments, res.RecordID)
			require.NoError(t, err)
			assert.Len(t, persisted, tt.wantClauses)
			for i, c := range persisted {
				assert.Equal(t, i, c.Ordinal)
				assert.Equal(t, res.Clauses[i].Content, c.Content)
			}

			stored, err := blobs.Get(ctx, rec.FileRef)
			require.NoError(t, err)
			assert.Equal(t, []byte(tt.file.Data), stored)

			assert.Equal(t, []string{res.RecordID}, idx.docs)
			assert.Equal(t, tt.wantClauses, idx.clauses)
			gen.AssertExpectations(t)
		})
	}
}

func TestExtractionService_MalformedOutput(t *testing.T) {
	ctx := context.Background()
	file := model.FileData{Name: "nda.pdf", Type: "application/pdf", Data: []byte("%PDF")}

	for _, answer := range []string{
		`{"summary":"missing clauses"}`,
		`{"clauses":[]}`,
		`{"summary":"x","clauses":[{"category":"payment"}]}`,
		`not json at all`,
	} {
		t.Run(answer, func(t *testing.T) {
			svc, gen, st, _, _ := newExtractionFixture(t)
			gen.On("GenerateObject", "clause_extraction", mock.Anything).Return(answer, nil)

			_, err := svc.ExtractToTemporary(ctx, file)
			assert.ErrorIs(t, err, ErrMalformedExtraction)

			recs, err := st.ListRecords(ctx, model.CollectionTemporaryDocuments)
			require.NoError(t, err)
			assert.Empty(t, recs)
		})
	}
}

func TestExtractionService_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported type", func(t *testing.T) {
		svc, gen, _, _, _ := newExtractionFixture(t)
		_, err := svc.ExtractToTemporary(ctx, model.FileData{Name: "photo.png", Type: "image/png", Data: []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 1}})
		assert.ErrorIs(t, err, ErrUnsupportedDocument)
		gen.AssertNotCalled(t, "GenerateObject", mock.Anything, mock.Anything)
	})

	t.Run("empty file", func(t *testing.T) {
		svc, _, _, _, _ := newExtractionFixture(t)
		_, err := svc.ExtractToTemporary(ctx, model.FileData{Name: "nda.pdf"})
		assert.Error(t, err)
	})

	t.Run("model error", func(t *testing.T) {
		svc, gen, _, _, _ := newExtractionFixture(t)
		gen.On("GenerateObject", "clause_extraction", mock.Anything).Return("", errors.New("upstream down"))
		_, err := svc.ExtractToTemporary(ctx, model.FileData{Name: "nda.pdf", Type: "application/pdf", Data: []byte("%PDF")})
		assert.ErrorContains(t, err, "upstream down")
		assert.NotErrorIs(t, err, ErrMalformedExtraction)
	})

	t.Run("blob error", func(t *testing.T) {
		svc, gen, st, blobs, _ := newExtractionFixture(t)
		blobs.putErr = errors.New("bucket gone")
		gen.On("GenerateObject", "clause_extraction", mock.Anything).Return(threeClauses, nil)

		_, err := svc.ExtractToTemporary(ctx, model.FileData{Name: "nda.pdf", Type: "application/pdf", Data: []byte("%PDF")})
		assert.ErrorContains(t, err, "bucket gone")
		recs, _ := st.ListRecords(ctx, model.CollectionTemporaryDocuments)
		assert.Empty(t, recs)
	})
}

func TestExtractionService_ExtractClausesDoesNotPersist(t *testing.T) {
	svc, gen, st, _, _ := newExtractionFixture(t)
	gen.On("GenerateObject", "clause_extraction", mock.Anything).Return(threeClauses, nil)

	ext, err := svc.ExtractClauses(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Mutual NDA between A and B", ext.Summary)
	assert.Len(t, ext.Clauses, 3)
	for _, c := range ext.Clauses {
		assert.Equal(t, model.ImportanceUnassessed, c.Importance)
	}

	recs, _ := st.ListRecords(context.Background(), model.CollectionTemporaryDocuments)
	assert.Empty(t, recs)
}

func TestExtractionService_SummarizeDocument(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 committed"))
	}))
	t.Cleanup(srv.Close)

	svc, gen, st, _, _ := newExtractionFixture(t)
	rec, err := st.CreateRecord(ctx, model.CollectionDocuments, store.NewRecord{Name: "nda.pdf", Type: "application/pdf"})
	require.NoError(t, err)

	gen.On("GenerateObject", "clause_extraction", mock.MatchedBy(func(r llm.ObjectRequest) bool {
		_, hasImportance := r.Schema["properties"].(map[string]any)["clauses"].(map[string]any)["items"].(map[string]any)["properties"].(map[string]any)["importance"]
		return hasImportance && string(r.Attachments[0].Data) == "%PDF-1.4 committed"
	})).Return(`{"summary":"Committed NDA","clauses":[
		{"category":"liability","content":"Liability is unlimited.","importance":"red-flag"},
		{"category":"payment","content":"No fees.","importance":"optional"}
	]}`, nil)

	ext, err := svc.SummarizeDocument(ctx, rec.ID, srv.URL+"/nda.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Committed NDA", ext.Summary)

	updated, err := st.GetRecord(ctx, model.CollectionDocuments, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Committed NDA", updated.Summary)

	clauses, err := st.ListClauses(ctx, model.CollectionDocuments, rec.ID)
	require.NoError(t, err)
	require.Len(t, clauses, 2)
	assert.Equal(t, "Liability is unlimited.", clauses[0].Content)
	assert.Equal(t, model.ImportanceRedFlag, clauses[0].Importance)
	assert.Equal(t, "No fees.", clauses[1].Content)
	assert.Equal(t, model.ImportanceOptional, clauses[1].Importance)
}

func TestExtractionService_SummarizeDocumentErrors(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("%PDF"))
	}))
	t.Cleanup(srv.Close)

	svc, gen, st, _, _ := newExtractionFixture(t)

	_, err := svc.SummarizeDocument(ctx, "0b6f2a8e-3f7c-4d52-9a51-7f3a0cc1b0de", srv.URL+"/nda.pdf")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec, err := st.CreateRecord(ctx, model.CollectionDocuments, store.NewRecord{Name: "nda.pdf"})
	require.NoError(t, err)

	_, err = svc.SummarizeDocument(ctx, rec.ID, srv.URL+"/missing.pdf")
	assert.ErrorContains(t, err, "status 404")

	gen.On("GenerateObject", "clause_extraction", mock.Anything).
		Return(`{"summary":"x","clauses":[{"category":"a","content":"b","importance":"urgent"}]}`, nil)
	_, err = svc.SummarizeDocument(ctx, rec.ID, srv.URL+"/nda.pdf")
	assert.ErrorIs(t, err, ErrMalformedExtraction)
}

func TestExtractionService_SummarizeDocumentRejectsNonHTTP(t *testing.T) {
	ctx := context.Background()
	secret := filepath.Join(t.TempDir(), "secrets.env")
	require.NoError(t, os.WriteFile(secret, []byte("DB_PASSWORD=hunter2"), 0o600))

	svc, gen, st, _, _ := newExtractionFixture(t)
	rec, err := st.CreateRecord(ctx, model.CollectionDocuments, store.NewRecord{Name: "nda.pdf"})
	require.NoError(t, err)

	for _, location := range []string{
		secret,
		"/etc/passwd",
		"file://" + secret,
		"ftp://example.com/nda.pdf",
		"//example.com/nda.pdf",
	} {
		t.Run(location, func(t *testing.T) {
			_, err := svc.SummarizeDocument(ctx, rec.ID, location)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	gen.AssertNotCalled(t, "GenerateObject", mock.Anything, mock.Anything)

	updated, err := st.GetRecord(ctx, model.CollectionDocuments, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Summary)
}

func TestEffectiveMIME(t *testing.T) {
	tests := []struct {
		name, file, declared string
		data                 []byte
		want                 string
	}{
		{"declared pdf", "x", "application/pdf", nil, mimePDF},
		{"declared with params", "x", "text/plain; charset=utf-8", nil, "text/plain"},
		{"extension docx", "contract.docx", "application/octet-stream", nil, mimeDOCX},
		{"sniff pdf", "upload", "", []byte("%PDF-1.3"), mimePDF},
		{"sniff zip", "upload", "", []byte("PK\x03\x04rest"), mimeDOCX},
		{"sniff text", "upload", "", []byte("hello world"), mimeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, effectiveMIME(tt.file, tt.declared, tt.data))
		})
	}
}
