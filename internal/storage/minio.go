// Package storage uploads derived assets to MinIO and hands back
// durable URLs.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Kind selects the remote folder an asset lands in.
type Kind string

const (
	KindVideo     Kind = "videos"
	KindThumbnail Kind = "thumbnails"
)

// Asset identifies one uploaded object. RemoteID is the object key and
// is what Delete takes.
type Asset struct {
	URL      string
	RemoteID string
}

type Client struct {
	minio     *minio.Client
	bucket    string
	publicURL string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL overrides the asset base URL; defaults to the endpoint.
	PublicURL string
}

// NewClient connects to MinIO and creates the bucket if missing.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}

	exists, err := mc.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, opts.Endpoint)
	}

	return &Client{
		minio:     mc,
		bucket:    opts.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload pushes a local file to remote storage under a fresh object key
// and returns its durable URL. Retried uploads of the same local file
// produce distinct objects.
func (c *Client) Upload(ctx context.Context, localPath string, kind Kind) (Asset, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return Asset{}, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return Asset{}, fmt.Errorf("stat %s: %w", localPath, err)
	}

	key := objectKey(localPath, kind)
	_, err = c.minio.PutObject(ctx, c.bucket, key, file, stat.Size(), minio.PutObjectOptions{
		ContentType: contentTypeFor(localPath),
	})
	if err != nil {
		return Asset{}, fmt.Errorf("upload %s: %w", localPath, err)
	}

	return Asset{
		URL:      fmt.Sprintf("%s/%s/%s", c.publicURL, c.bucket, key),
		RemoteID: key,
	}, nil
}

// Delete removes a remote object. Deleting an object that does not
// exist is a no-op, so cleanup paths can call it blindly.
func (c *Client) Delete(ctx context.Context, remoteID string) error {
	err := c.minio.RemoveObject(ctx, c.bucket, remoteID, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("delete %s: %w", remoteID, err)
	}
	return nil
}

// KeyFromURL recovers the object key from a durable URL produced by
// this client. Returns "" when the URL is not ours.
func (c *Client) KeyFromURL(assetURL string) string {
	u, err := url.Parse(assetURL)
	if err != nil {
		return ""
	}
	prefix := "/" + c.bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return ""
	}
	return strings.TrimPrefix(u.Path, prefix)
}

func objectKey(localPath string, kind Kind) string {
	return fmt.Sprintf("%s/%s%s", kind, uuid.NewString(), filepath.Ext(localPath))
}

func contentTypeFor(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
