package bot

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDownloadTimeout = 30 * time.Second
	DefaultMaxImageSize    = 10 << 20
)

// ImageDownloader fetches photos users send from Telegram's file storage.
type ImageDownloader struct {
	httpClient *resty.Client
	maxSize    int64
}

func NewImageDownloader() *ImageDownloader {
	return &ImageDownloader{
		httpClient: resty.New().SetTimeout(DefaultDownloadTimeout),
		maxSize:    DefaultMaxImageSize,
	}
}

func (d *ImageDownloader) WithTimeout(timeout time.Duration) *ImageDownloader {
	d.httpClient.SetTimeout(timeout)
	return d
}

func (d *ImageDownloader) WithMaxSize(maxSize int64) *ImageDownloader {
	d.maxSize = maxSize
	return d
}

// DownloadFromURL returns the body at imageURL. The response must be an
// image no larger than the configured limit.
func (d *ImageDownloader) DownloadFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	res, err := d.httpClient.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("download image: status %d", res.StatusCode())
	}
	if ct := res.Header().Get("Content-Type"); !isImageContentType(ct) {
		return nil, fmt.Errorf("invalid content type %q, want image/*", ct)
	}

	body := res.Body()
	switch {
	case len(body) == 0:
		return nil, errors.New("downloaded image is empty")
	case int64(len(body)) > d.maxSize:
		return nil, fmt.Errorf("image too large: %d bytes, limit %d", len(body), d.maxSize)
	}
	return body, nil
}

// isImageContentType accepts image/* and a missing type. Telegram file
// storage labels some photos application/octet-stream.
func isImageContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/octet-stream"
}

// DownloadFromTelegramFileID resolves fileID with getFileDirectURL and
// downloads the result.
func (d *ImageDownloader) DownloadFromTelegramFileID(
	ctx context.Context,
	getFileDirectURL func(fileID string) (string, error),
	fileID string,
) ([]byte, error) {
	url, err := getFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file URL: %w", err)
	}
	log.Debug().Str("fileID", fileID).Msg("downloading telegram file")
	return d.DownloadFromURL(ctx, url)
}
