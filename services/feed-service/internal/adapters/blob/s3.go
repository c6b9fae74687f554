package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options параметры бакета
type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
	// PathStyle нужен для S3-совместимых хранилищ вроде MinIO
	PathStyle bool
}

// S3Store хранилище фидов в S3.
// Файл загружается multipart-загрузкой, которая завершается только на Commit.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store загружает конфигурацию AWS из окружения и создает клиента
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is empty")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (s *S3Store) key(p string) (string, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return s.prefix + "/" + cleaned, nil
}

func (s *S3Store) Create(ctx context.Context, p string) (interfaces.BlobWriter, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}
	location, _ := cleanPath(p)

	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, location: location, result: make(chan error, 1)}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	go func() {
		_, err := s.uploader.Upload(ctx, input)
		// при ошибке загрузки писатель не должен блокироваться на пайпе
		_ = pr.CloseWithError(err)
		w.result <- err
	}()

	return w, nil
}

func (s *S3Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, &os.PathError{Op: "open", Path: key, Err: os.ErrNotExist}
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

// Ping проверяет доступ к бакету
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// Close ничего не делает, клиент S3 не держит соединений
func (s *S3Store) Close() error { return nil }

type s3Writer struct {
	pw       *io.PipeWriter
	location string
	result   chan error

	mu   sync.Mutex
	done bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Commit() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return "", errWriterDone
	}
	w.done = true

	_ = w.pw.Close()
	if err := <-w.result; err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", w.location, err)
	}
	return w.location, nil
}

func (w *s3Writer) Abort(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.done = true

	if err == nil {
		err = errors.New("upload aborted")
	}
	// uploader прерывает multipart-загрузку, получив ошибку чтения
	_ = w.pw.CloseWithError(err)
	<-w.result
}
