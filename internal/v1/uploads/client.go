// Package uploads stores chat image attachments in S3-compatible object
// storage. Each attachment lives as two objects: the original under its id
// and a small preview under "<id>-preview". Clients fetch both through
// short-lived presigned URLs.
package uploads

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/logging"
)

const (
	defaultBucket  = "ert-chat-message-images"
	linkExpiry     = time.Hour
	previewSuffix  = "-preview"
	uploadDeadline = 30 * time.Second
)

// Links is one attachment's pair of presigned GET URLs.
type Links struct {
	ID      string `json:"id"`
	Full    string `json:"full"`
	Preview string `json:"preview"`
}

// Client talks to the attachment bucket. A client built without AWS
// configuration is disabled: the server runs, upload endpoints refuse.
type Client struct {
	s3       *s3.Client
	presign  *s3.PresignClient
	bucket   string
	disabled bool
}

// NewFromEnv builds a client from the ambient AWS environment. Missing
// configuration logs a warning and yields a disabled client rather than an
// error, so image uploads degrade without taking the game down.
func NewFromEnv(ctx context.Context) *Client {
	if os.Getenv("AWS_REGION") == "" {
		logging.Warn(ctx, "AWS_REGION is not set, image uploads are disabled")
		return &Client{disabled: true}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logging.Warn(ctx, "loading AWS configuration failed, image uploads are disabled", zap.Error(err))
		return &Client{disabled: true}
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if os.Getenv("S3_FORCE_PATH_STYLE") == "true" {
			o.UsePathStyle = true
		}
	})

	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		bucket = defaultBucket
	}

	return &Client{
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
		bucket:  bucket,
	}
}

// Enabled reports whether object storage is configured.
func (c *Client) Enabled() bool {
	return c != nil && !c.disabled
}

// UploadImage validates the image, derives its preview and returns the new
// attachment id. The two PutObject calls run in the background; the preview
// goes first so a chat rendering the attachment early finds something.
func (c *Client) UploadImage(ctx context.Context, data []byte) (string, error) {
	preview, err := makePreview(data)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	contentType := http.DetectContentType(data)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), uploadDeadline)
		defer cancel()

		if err := c.put(ctx, id+previewSuffix, preview, "image/png"); err != nil {
			logging.Error(ctx, "preview upload failed",
				zap.String("attachment_id", id), zap.Error(err))
			return
		}
		if err := c.put(ctx, id, data, contentType); err != nil {
			logging.Error(ctx, "original upload failed",
				zap.String("attachment_id", id), zap.Error(err))
		}
	}()

	return id, nil
}

func (c *Client) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

// AttachmentLinks presigns GET URLs for each id's full image and preview.
func (c *Client) AttachmentLinks(ctx context.Context, ids []string) ([]Links, error) {
	links := make([]Links, 0, len(ids))
	for _, id := range ids {
		full, err := c.presignGet(ctx, id)
		if err != nil {
			return nil, err
		}
		preview, err := c.presignGet(ctx, id+previewSuffix)
		if err != nil {
			return nil, err
		}
		links = append(links, Links{ID: id, Full: full, Preview: preview})
	}
	return links, nil
}

func (c *Client) presignGet(ctx context.Context, key string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(linkExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
