// Package publish moves sealed image file sets between a local image root
// and an S3-compatible bucket.
//
// A committed standard image is not a single file: the named .cim holds the
// filesystem description while object data lives in region_* and objectid_*
// files shared across every image in the same root. Push and Pull therefore
// always transfer the complete set, never the .cim alone.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mwantia/cim/log"
)

type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix is prepended to every object key. Defaults to "cim".
	Prefix string
}

type Publisher struct {
	mu sync.Mutex

	client *minio.Client
	bucket string
	prefix string
	lg     *log.Logger
}

func NewPublisher(cfg Config, lg *log.Logger) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "cim"
	}
	if lg == nil {
		lg = log.Discard()
	}

	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		lg:     lg.Named("publish"),
	}, nil
}

// Push uploads the sealed image named imageName from the local image root,
// together with every region_* and objectid_* file co-located in that root.
// The set is stored under <prefix>/<imageName>/ in the bucket.
func (p *Publisher) Push(ctx context.Context, root, imageName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", p.bucket)
	}

	files, err := imageFileSet(root, imageName)
	if err != nil {
		return err
	}

	for _, name := range files {
		local := filepath.Join(root, name)
		key := path.Join(p.prefix, imageName, name)

		p.lg.Debug("uploading %q to %q", local, key)
		if _, err := p.client.FPutObject(ctx, p.bucket, key, local, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		}); err != nil {
			return fmt.Errorf("upload %q: %w", name, err)
		}
	}

	p.lg.Info("pushed image %q (%d files)", imageName, len(files))
	return nil
}

// Pull downloads the complete file set of imageName into the local image
// root, creating the root if necessary.
func (p *Publisher) Pull(ctx context.Context, root, imageName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	keyPrefix := path.Join(p.prefix, imageName) + "/"
	count := 0

	for info := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    keyPrefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return info.Err
		}

		name := strings.TrimPrefix(info.Key, keyPrefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}

		local := filepath.Join(root, name)
		p.lg.Debug("downloading %q to %q", info.Key, local)
		if err := p.client.FGetObject(ctx, p.bucket, info.Key, local, minio.GetObjectOptions{}); err != nil {
			return fmt.Errorf("download %q: %w", name, err)
		}
		count++
	}

	if count == 0 {
		return fmt.Errorf("image %q not found in bucket %q", imageName, p.bucket)
	}

	p.lg.Info("pulled image %q (%d files)", imageName, count)
	return nil
}

// imageFileSet returns the relative names of every file belonging to the
// sealed image: the .cim itself plus all region and object ID files in the
// same root.
func imageFileSet(root, imageName string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(root, imageName)); err != nil {
		return nil, fmt.Errorf("image %q: %w", imageName, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	files := []string{imageName}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "region_") || strings.HasPrefix(name, "objectid_") {
			files = append(files, name)
		}
	}
	return files, nil
}
