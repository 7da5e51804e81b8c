package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Itish41/ndareview/logger"
)

// ErrMalformedOutput is returned when the model answer is not the JSON object
// the schema asked for.
var ErrMalformedOutput = errors.New("model output is not valid JSON")

// Config configures the OpenAI-compatible client.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
}

// Client talks to the OpenAI Responses and Embeddings APIs.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	maxRetries int
	httpClient *http.Client
	log        *logger.Logger
	sleep      func(context.Context, time.Duration) error
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		embedModel: cfg.EmbeddingModel,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
		sleep:      sleepCtx,
	}, nil
}

// HTTPError carries a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (c *Client) doOnce(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			httpErr.retryAfter = time.Duration(secs) * time.Second
		}
		return httpErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai decode error: %w", err)
	}
	return nil
}

// do retries rate-limit and server errors with exponential backoff.
func (c *Client) do(ctx context.Context, path string, body any, out any, retries int) error {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		err := c.doOnce(ctx, path, body, out)
		if err == nil {
			return nil
		}

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !httpErr.retryable() || attempt >= retries || ctx.Err() != nil {
			return err
		}

		wait := backoff
		if httpErr.retryAfter > 0 {
			wait = httpErr.retryAfter
		}
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", retries,
			"sleep", wait.String(),
			"error", err.Error(),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
		backoff *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attachment is a document handed to the model next to the prompt. PDFs are
// sent as file parts; anything else must carry its text in Text.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
	Text      string
}

// ObjectRequest asks the model for a JSON object matching Schema.
type ObjectRequest struct {
	System      string
	Prompt      string
	Attachments []Attachment
	SchemaName  string
	Schema      map[string]any
}

type inputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model        string         `json:"model"`
	Instructions string         `json:"instructions,omitempty"`
	Input        []inputMessage `json:"input"`
	Text         struct {
		Format map[string]any `json:"format"`
	} `json:"text"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

func (r responsesResponse) outputText() (string, string) {
	var text, refusal strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			switch c.Type {
			case "output_text":
				text.WriteString(c.Text)
			case "refusal":
				refusal.WriteString(c.Refusal)
			}
		}
	}
	return text.String(), refusal.String()
}

func userContent(prompt string, attachments []Attachment) []map[string]any {
	content := make([]map[string]any, 0, len(attachments)+1)
	for _, a := range attachments {
		if a.MediaType == "application/pdf" && len(a.Data) > 0 {
			content = append(content, map[string]any{
				"type":      "input_file",
				"filename":  a.Name,
				"file_data": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(a.Data),
			})
			continue
		}
		content = append(content, map[string]any{
			"type": "input_text",
			"text": fmt.Sprintf("Document %q:\n\n%s", a.Name, a.Text),
		})
	}
	content = append(content, map[string]any{"type": "input_text", "text": prompt})
	return content
}

// GenerateObject runs a strict structured-output request and decodes the
// answer into out.
func (c *Client) GenerateObject(ctx context.Context, req ObjectRequest, out any) error {
	if req.SchemaName == "" || req.Schema == nil {
		return errors.New("schema name and schema are required")
	}

	body := responsesRequest{
		Model:        c.model,
		Instructions: req.System,
		Input:        []inputMessage{{Role: "user", Content: userContent(req.Prompt, req.Attachments)}},
	}
	body.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   req.SchemaName,
		"schema": req.Schema,
		"strict": true,
	}

	var resp responsesResponse
	if err := c.do(ctx, "/responses", body, &resp, c.maxRetries); err != nil {
		return err
	}

	text, refusal := resp.outputText()
	if refusal != "" {
		return fmt.Errorf("model refused: %s", refusal)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns the embedding of a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, returning vectors in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(texts))
	for i, s := range texts {
		s = strings.TrimSpace(s)
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embeddingsResponse
	if err := c.do(ctx, "/embeddings", embeddingsRequest{Model: c.embedModel, Input: clean}, &resp, 0); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai embeddings missing index %d: requested=%d returned=%d", i, len(clean), len(resp.Data))
		}
	}
	return out, nil
}
