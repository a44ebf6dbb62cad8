package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/space-operator/spo-go/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

type (
	// Writer stores archived runs as JSON objects under a key prefix
	Writer struct {
		bucket Bucket
		prefix string
	}

	// Bucket is the subset of *blob.Bucket the Writer needs
	Bucket interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
		ReadAll(context.Context, string) ([]byte, error)
	}

	// Run is the archived form of one flow run
	Run struct {
		FlowRunID api.FlowRunID `json:"flow_run_id"`
		Events    []Entry       `json:"events"`
		Finished  bool          `json:"finished"`
	}

	// Entry is one recorded event
	Entry struct {
		Event api.EventKind   `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}
)

var (
	ErrBucketRequired = errors.New("bucket is required")
	ErrRunRequired    = errors.New("run is required")
	ErrRunNotFound    = errors.New("archived run not found")
)

var _ Bucket = (*blob.Bucket)(nil)

// OpenBucket opens a gocloud bucket URL such as s3://, gs://, azblob://,
// file:// or mem://
func OpenBucket(ctx context.Context, url string) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, url)
}

// NewWriter creates a Writer over bucket
func NewWriter(bucket Bucket, prefix string) (*Writer, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Writer{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Write stores run at its key, replacing any earlier copy
func (w *Writer) Write(ctx context.Context, run *Run) error {
	if run == nil {
		return ErrRunRequired
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return w.bucket.WriteAll(ctx, w.Key(run.FlowRunID), data, nil)
}

// Load reads an archived run back
func (w *Writer) Load(ctx context.Context, id api.FlowRunID) (*Run, error) {
	data, err := w.bucket.ReadAll(ctx, w.Key(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Key returns the object key for a run
func (w *Writer) Key(id api.FlowRunID) string {
	if w.prefix == "" {
		return string(id) + ".json"
	}
	prefix := w.prefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + string(id) + ".json"
}
