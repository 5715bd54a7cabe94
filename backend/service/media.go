package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/shhady/leadform/backend/config"
)

// ProgressFunc receives the transferred share of a file in percent.
type ProgressFunc func(percent int)

// MediaHost stores uploaded images and returns a URL that can be put in an
// email.
type MediaHost interface {
	Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)
	Delete(ctx context.Context, publicID string) error
}

// NewMediaHost picks the host configured in cfg.
func NewMediaHost(ctx context.Context, cfg *config.MediaConfig) (MediaHost, error) {
	switch cfg.Provider {
	case "minio":
		svc, err := NewMinioService(&cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := svc.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return svc, nil
	case "cloudinary":
		return NewCloudinaryService(&cfg.Cloudinary)
	default:
		return nil, fmt.Errorf("unknown media provider %q", cfg.Provider)
	}
}

// PublicIDFromURL derives the host identifier of a previously returned URL:
// the last path segment without its extension.
func PublicIDFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	if base == "/" || base == "." {
		return ""
	}
	return base
}

// progressReader reports how much of r has been consumed. It only calls
// report when the integer percentage changes.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report ProgressFunc
}

func newProgressReader(r io.Reader, total int64, report ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, last: -1, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.add(n)
	return n, err
}

func (p *progressReader) add(n int) {
	if n <= 0 || p.report == nil || p.total <= 0 {
		return
	}
	p.read += int64(n)
	pct := int((p.read*100 + p.total/2) / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct != p.last {
		p.last = pct
		p.report(pct)
	}
}

// progressCounter is a Progress sink for clients that read from it once per
// chunk sent, as minio-go does.
type progressCounter struct {
	*progressReader
}

func (c progressCounter) Read(b []byte) (int, error) {
	c.add(len(b))
	return len(b), nil
}
