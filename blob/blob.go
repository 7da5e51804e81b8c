package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob not found")

// Store keeps uploaded file bytes. Keys are never reused, so a stored blob is
// immutable once written.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
}

// NewKey builds a fresh object key for a file name. The time prefix keeps keys
// sortable; the uuid keeps re-uploads of the same name apart.
func NewKey(now time.Time, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	return fmt.Sprintf("%d-%s-%s", now.Unix(), uuid.NewString()[:8], base)
}

func publicURL(base, bucket, key string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return fmt.Sprintf("/%s/%s", bucket, key)
	}
	return fmt.Sprintf("%s/object/public/%s/%s", base, bucket, key)
}
