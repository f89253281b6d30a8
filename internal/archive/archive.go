// Package archive uploads rotated journal segments to an S3-compatible
// bucket for cold retention. It is wired into a journal.Queue as a
// journal.ArchiveFunc: the queue fires it, fire-and-forget, the moment
// a segment stops accepting writes while that segment still holds
// unacknowledged items. A segment whose items are all acknowledged at
// rotation is removed from disk without being uploaded. Archiving is
// best-effort backup, never a deletion gate — the journal still
// compacts a segment off disk once its pending count reaches zero,
// whether or not the upload has completed.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/logging"
)

// Sentinel errors for archive failure classification. Callers use
// errors.Is against these rather than matching strings.
var (
	ErrPermissionDenied = errors.New("archive: permission denied")
	ErrNotFound         = errors.New("archive: not found")
	ErrThrottled        = errors.New("archive: rate limited")
	ErrNetwork          = errors.New("archive: network error")
)

// Uploader puts rotated journal segments into an S3-compatible bucket.
type Uploader struct {
	client      *s3.Client
	bucket      string
	prefix      string
	deleteLocal bool
	log         *logging.Logger
}

// Config configures an Uploader's target bucket and upload behavior.
type Config struct {
	Bucket      string
	Prefix      string
	Region      string
	Endpoint    string
	PathStyle   bool
	DeleteLocal bool
}

// New builds an Uploader using the AWS SDK's default credential chain
// (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config, log *logging.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive: bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &Uploader{
		client:      s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		deleteLocal: cfg.DeleteLocal,
		log:         log,
	}, nil
}

// ArchiveFunc returns a journal.ArchiveFunc bound to u, suitable for
// passing to journal.New/registry.New/lifecycle.Scan. Failures are
// logged, never surfaced to the queue: archiving must never block or
// fail a journal operation.
func (u *Uploader) ArchiveFunc() journal.ArchiveFunc {
	return func(realName, path string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := u.Upload(ctx, realName, path); err != nil {
			u.log.Warn("segment archive upload failed",
				zap.String("name", realName), zap.String("path", path), zap.Error(err))
			return
		}
		u.log.Info("segment archived", zap.String("name", realName), zap.String("path", path))
	}
}

// Upload reads the segment at path and puts it under the queue's key
// prefix, keyed by realName and the segment's own filename.
func (u *Uploader) Upload(ctx context.Context, realName, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return wrapErr("open", path, err)
	}
	defer f.Close()

	key := u.key(realName, filepath.Base(path))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return wrapErr("put", key, err)
	}

	if u.deleteLocal {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			u.log.Warn("archive: failed to remove local segment after upload",
				zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

func (u *Uploader) key(realName, base string) string {
	parts := make([]string, 0, 3)
	if u.prefix != "" {
		parts = append(parts, strings.Trim(u.prefix, "/"))
	}
	parts = append(parts, realName, base)
	return strings.Join(parts, "/")
}

// classifyError maps a raw error's message onto a sentinel for
// errors.Is-friendly handling upstream.
func classifyError(err error) error {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "accessdenied"), strings.Contains(s, "forbidden"), strings.Contains(s, "403"):
		return ErrPermissionDenied
	case strings.Contains(s, "nosuchkey"), strings.Contains(s, "not found"), strings.Contains(s, "404"):
		return ErrNotFound
	case strings.Contains(s, "slowdown"), strings.Contains(s, "throttl"), strings.Contains(s, "429"):
		return ErrThrottled
	case strings.Contains(s, "connection refused"), strings.Contains(s, "no such host"), strings.Contains(s, "dial tcp"):
		return ErrNetwork
	default:
		return nil
	}
}

// uploadError wraps an underlying failure with the operation and key
// involved, preserving the chain for errors.Is/errors.As.
type uploadError struct {
	op  string
	key string
	err error
}

func (e *uploadError) Error() string {
	return fmt.Sprintf("archive: %s %s: %v", e.op, e.key, e.err)
}

func (e *uploadError) Unwrap() error {
	if kind := classifyError(e.err); kind != nil {
		return kind
	}
	return e.err
}

func wrapErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &uploadError{op: op, key: key, err: err}
}
