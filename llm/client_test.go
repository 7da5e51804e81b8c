package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Itish41/ndareview/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: 2}, logger.Nop())
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func outputText(text string) map[string]any {
	return map[string]any{
		"output": []any{
			map[string]any{
				"type": "message",
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, logger.Nop())
	assert.Error(t, err)
}

func TestGenerateObjectSendsSchemaAndAttachments(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(outputText(`{"summary":"ok","clauses":[]}`))
	})

	var out struct {
		Summary string `json:"summary"`
	}
	err := c.GenerateObject(context.Background(), ObjectRequest{
		System:     "be precise",
		Prompt:     "extract",
		SchemaName: "extraction",
		Schema:     map[string]any{"type": "object"},
		Attachments: []Attachment{
			{Name: "nda.pdf", MediaType: "application/pdf", Data: []byte("%PDF")},
			{Name: "notes.txt", MediaType: "text/plain", Text: "hello"},
		},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Summary)

	assert.Equal(t, "be precise", got["instructions"])
	format := got["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "extraction", format["name"])
	assert.Equal(t, true, format["strict"])

	content := got["input"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)
	file := content[0].(map[string]any)
	assert.Equal(t, "input_file", file["type"])
	assert.Equal(t, "data:application/pdf;base64,JVBERg==", file["file_data"])
	assert.Contains(t, content[1].(map[string]any)["text"], "hello")
	assert.Equal(t, "extract", content[2].(map[string]any)["text"])
}

func TestGenerateObjectMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(outputText(`not json`))
	})
	var out map[string]any
	err := c.GenerateObject(context.Background(), ObjectRequest{SchemaName: "x", Schema: map[string]any{}}, &out)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestGenerateObjectRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(outputText(`{"a":1}`))
	})
	var out map[string]any
	require.NoError(t, c.GenerateObject(context.Background(), ObjectRequest{SchemaName: "x", Schema: map[string]any{}}, &out))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRetryBackoffStopsOnCancel(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "3600")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c.sleep = sleepCtx

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	var out map[string]any
	err := c.GenerateObject(ctx, ObjectRequest{SchemaName: "x", Schema: map[string]any{}}, &out)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerateObjectDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad schema"}`))
	})
	var out map[string]any
	err := c.GenerateObject(context.Background(), ObjectRequest{SchemaName: "x", Schema: map[string]any{}}, &out)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEmbedBatchOrdersByIndex(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	})

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEmbedPropagatesErrorsWithoutRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEmbedBatchMissingIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	})
	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "missing index 1")
}
