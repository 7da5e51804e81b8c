package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Itish41/ndareview/blob"
	"github.com/Itish41/ndareview/llm"
	model "github.com/Itish41/ndareview/models"
	"github.com/Itish41/ndareview/store"
)

// FixedTime keeps timestamps deterministic across tests.
var FixedTime = time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Document{},
		&model.Clause{},
		&model.TemporaryDocument{},
		&model.TemporaryClause{},
	))
	return store.NewGormStore(db, 24*time.Hour)
}

// MockGenerator answers GenerateObject with canned JSON.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateObject(ctx context.Context, req llm.ObjectRequest, out any) error {
	args := m.Called(req.SchemaName, req)
	if raw := args.String(0); raw != "" {
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return fmt.Errorf("%w: %v", llm.ErrMalformedOutput, err)
		}
	}
	return args.Error(1)
}

// fakeEmbedder returns fixed vectors per text.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[string]error
	batches int
	calls   int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{}, fail: map[string]error{}}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.fail[text]; ok {
		return nil, err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// memBlobs is an in-memory blob.Store.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return nil
}

func (m *memBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return data, nil
}

func (m *memBlobs) URL(key string) string { return "https://blobs.test/" + key }

// stubConverter returns out for every call and records the names it saw.
type stubConverter struct {
	out   []byte
	err   error
	names []string
}

func (s *stubConverter) Convert(ctx context.Context, data []byte, filename string) ([]byte, error) {
	s.names = append(s.names, filename)
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

// recordingIndexer captures best-effort index calls.
type recordingIndexer struct {
	mu      sync.Mutex
	docs    []string
	clauses int
}

func (r *recordingIndexer) IndexDocument(ctx context.Context, rec model.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, rec.ID)
}

func (r *recordingIndexer) IndexClauses(ctx context.Context, rec model.Record, clauses []model.ClauseRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clauses += len(clauses)
}
