package initializers

import (
	"context"
	"fmt"

	"github.com/Itish41/ndareview/blob"
	"github.com/Itish41/ndareview/llm"
	"github.com/Itish41/ndareview/logger"
	"github.com/Itish41/ndareview/vectorstore"
)

// NewLLM builds the model client used for extraction, classification and
// embeddings.
func NewLLM(cfg Config, log *logger.Logger) (*llm.Client, error) {
	return llm.New(llm.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.OpenAIModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.OpenAITimeout,
		MaxRetries:     cfg.OpenAIRetries,
	}, log)
}

// NewVectorStore returns the configured reference-corpus store. The Qdrant
// collection is created when missing.
func NewVectorStore(ctx context.Context, cfg Config, log *logger.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore {
	case "memory":
		log.Warn("Using in-memory vector store; the corpus is lost on restart")
		return vectorstore.NewMemory(cfg.VectorDim), nil
	case "qdrant":
		q, err := vectorstore.NewQdrant(vectorstore.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			VectorDim:  cfg.VectorDim,
		}, log)
		if err != nil {
			return nil, err
		}
		if err := q.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
}

// NewBlobStore returns the configured file store.
func NewBlobStore(ctx context.Context, cfg Config) (blob.Store, error) {
	s3cfg := blob.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
		UseSSL:    cfg.S3UseSSL,
	}
	switch cfg.BlobDriver {
	case "minio":
		return blob.NewMinioStore(ctx, s3cfg)
	case "s3":
		return blob.NewS3Store(s3cfg)
	}
	return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
}
