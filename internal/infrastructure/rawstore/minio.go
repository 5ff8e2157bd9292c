package rawstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/ports"
)

// MinioOptions locates the bucket holding snapshots.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	UseSSL    bool
}

// Minio stores snapshots as objects <prefix>/<date>.json.
type Minio struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ ports.SnapshotStore = (*Minio)(nil)

// NewMinio connects and creates the bucket if it does not exist.
func NewMinio(ctx context.Context, opts MinioOptions) (*Minio, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}

	return &Minio{client: client, bucket: opts.Bucket, prefix: strings.Trim(opts.Prefix, "/")}, nil
}

func (s *Minio) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Save uploads the artifact, replacing any previous object for the date.
func (s *Minio) Save(ctx context.Context, snap domain.Snapshot) error {
	name, err := FileName(snap.Date)
	if err != nil {
		return err
	}
	payload, err := Encode(snap)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.objectKey(name), bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

// List returns artifact names under the prefix in lexical order.
func (s *Minio) List(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: listPrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		name := path.Base(obj.Key)
		if strings.HasSuffix(name, Extension) && !strings.HasSuffix(obj.Key, "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load downloads one artifact by name.
func (s *Minio) Load(ctx context.Context, name string) ([]byte, error) {
	if name != path.Base(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return raw, nil
}
