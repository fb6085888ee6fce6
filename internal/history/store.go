package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"golang.org/x/sync/errgroup"
)

// Store reads chunk files by their history-relative path. A missing file
// returns ErrChunkNotFound.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// FetchChunks downloads chunks with at most concurrency requests in
// flight. The result has one slot per chunk; a failed or missing chunk
// leaves its slot nil.
func FetchChunks(ctx context.Context, store Store, chunks []ChunkInfo, concurrency int) [][]byte {
	if concurrency < 1 {
		concurrency = 2
	}
	results := make([][]byte, len(chunks))

	var eg errgroup.Group
	eg.SetLimit(concurrency)
	for i, c := range chunks {
		i, c := i, c
		eg.Go(func() error {
			buf, err := store.Get(ctx, c.Path)
			if err == nil {
				results[i] = buf
			}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// HTTPStore fetches chunks from a web server
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) Get(ctx context.Context, p string) ([]byte, error) {
	url := s.baseURL + "/" + strings.TrimPrefix(p, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunk: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrChunkNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk body: %w", err)
	}
	return body, nil
}

// DirStore reads chunks from a local directory laid out like the web root
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (s *DirStore) Get(_ context.Context, p string) ([]byte, error) {
	clean := path.Clean("/" + p)
	buf, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk: %w", err)
	}
	return buf, nil
}

// GCSStore reads chunks from a Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// NewGCSStore connects to bucket. An empty credentialsFile uses the
// ambient application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: prefix,
	}, nil
}

func (s *GCSStore) Get(ctx context.Context, p string) ([]byte, error) {
	r, err := s.bucket.Object(s.prefix + strings.TrimPrefix(p, "/")).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk object: %w", err)
	}
	defer r.Close()

	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk object: %w", err)
	}
	return buf, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
