package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Itish41/ndareview/logger"
)

type OperationErrorCode string

const (
	OperationErrorValidation      OperationErrorCode = "validation_failed"
	OperationErrorEncodeFailed    OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed    OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorQueryFailed     OperationErrorCode = "query_failed"
)

// OperationError describes a failed Qdrant call.
type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	detail := e.Message
	if detail == "" && e.Cause != nil {
		detail = e.Cause.Error()
	}
	return fmt.Sprintf("qdrant operation failed (op=%s code=%s status=%d): %s", e.Operation, e.Code, e.StatusCode, detail)
}

func (e *OperationError) Unwrap() error { return e.Cause }

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{Code: code, Operation: op, Message: msg, Cause: cause}
}

const maxErrorBody = 1024

// QdrantConfig addresses one collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	VectorDim  int
	Timeout    time.Duration
}

// Qdrant is a REST client for a single Qdrant collection using cosine distance.
type Qdrant struct {
	cfg     QdrantConfig
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

func NewQdrant(cfg QdrantConfig, log *logger.Logger) (*Qdrant, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("missing QDRANT_HOST")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("missing QDRANT_COLLECTION")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Qdrant{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With("service", "QdrantVectorStore"),
	}, nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := q.doJSON(ctx, op, http.MethodGet, q.collectionPath(""), nil, &info)
	if err == nil {
		if size := info.Config.Params.Vectors.Size; size != 0 && q.cfg.VectorDim != 0 && size != q.cfg.VectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("collection %q vector size mismatch: expected=%d actual=%d", q.cfg.Collection, q.cfg.VectorDim, size), nil)
		}
		return nil
	}

	var oe *OperationError
	if !errors.As(err, &oe) || oe.StatusCode != http.StatusNotFound {
		return err
	}
	if q.cfg.VectorDim <= 0 {
		return opErr(op, OperationErrorValidation, "vector dimension required to create collection", nil)
	}

	q.log.Info("creating qdrant collection", "collection", q.cfg.Collection, "vector_dim", q.cfg.VectorDim)
	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath(""), map[string]any{
		"vectors": map[string]any{"size": q.cfg.VectorDim, "distance": "Cosine"},
	}, nil)
}

func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}

	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if strings.TrimSpace(p.ID) == "" {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point %q has empty vector", p.ID), nil)
		}
		if q.cfg.VectorDim > 0 && len(p.Vector) != q.cfg.VectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("point %q dimension mismatch: expected=%d got=%d", p.ID, q.cfg.VectorDim, len(p.Vector)), nil)
		}
		payload := p.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		body = append(body, map[string]any{"id": p.ID, "vector": p.Vector, "payload": payload})
	}

	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": body}, nil)
}

type searchItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if q.cfg.VectorDim > 0 && len(vector) != q.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", q.cfg.VectorDim, len(vector)), nil)
	}
	if limit <= 0 {
		limit = 10
	}

	var items []searchItem
	err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}, &items)
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(items))
	for _, it := range items {
		out = append(out, Match{ID: rawID(it.ID), Score: it.Score, Payload: it.Payload})
	}
	sortMatches(out)
	return out, nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func (q *Qdrant) collectionPath(suffix string) string {
	return "/collections/" + q.cfg.Collection + suffix
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

func (q *Qdrant) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return classifyCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, string(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if msg := statusError(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, "qdrant request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, "qdrant request timed out", err)
	}
	return opErr(op, OperationErrorTransportFailed, "qdrant request failed", err)
}

func statusError(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", s)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return ""
}
