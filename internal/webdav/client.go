package webdav

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"

	"github.com/docker/go-units"

	"github.com/kebairia/mealie-backup/internal/config"
	"github.com/kebairia/mealie-backup/internal/logger"
	"github.com/kebairia/mealie-backup/internal/progress"
	"github.com/kebairia/mealie-backup/internal/transport"
)

// Status codes a WebDAV server answers a successful PUT with.
var successCodes = []int{http.StatusOK, http.StatusCreated, http.StatusNoContent}

// Option configures a Client.
type Option func(*Client)

// Client uploads files into one directory of a WebDAV share.
type Client struct {
	http     *http.Client
	cfg      config.NextcloudConfig
	log      logger.Logger
	progress bool
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithProgress shows a progress bar while uploading.
func WithProgress(enabled bool) Option {
	return func(c *Client) {
		c.progress = enabled
	}
}

func NewClient(cfg config.NextcloudConfig, opts ...Option) *Client {
	c := &Client{
		http: transport.NewClient(),
		cfg:  cfg,
		log:  logger.Global(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TargetURL is where a file called name is stored.
func (c *Client) TargetURL(name string) string {
	return config.BuildURL(c.cfg.WebDAVURL(), c.cfg.Dir, url.PathEscape(name))
}

// Upload PUTs the file at localPath to the target directory under name and
// returns the remote URL. A missing local file fails before any request.
func (c *Client) Upload(ctx context.Context, name, localPath string) (string, error) {
	target := c.TargetURL(name)

	f, err := os.Open(localPath)
	if err != nil {
		kind := transport.KindIO
		if errors.Is(err, fs.ErrNotExist) {
			kind = transport.KindMissingFile
			c.log.Error("local file does not exist", "path", localPath)
		} else {
			c.log.Error("cannot open local file", "path", localPath, "error", err.Error())
		}
		return "", &transport.Error{Kind: kind, Op: "upload", URL: target, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.log.Error("cannot stat local file", "path", localPath, "error", err.Error())
		return "", &transport.Error{Kind: transport.KindIO, Op: "upload", URL: target, Err: err}
	}
	if info.IsDir() {
		c.log.Error("local path is a directory", "path", localPath)
		return "", &transport.Error{Kind: transport.KindMissingFile, Op: "upload", URL: target, Err: fmt.Errorf("%s is a directory", localPath)}
	}

	c.log.Info("uploading backup", "backup", name, "url", target, "size", units.HumanSize(float64(info.Size())))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, done := progress.Wrap(c.progress, f, info.Size(), "upload "+name)
	defer done()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		c.log.Error("request error uploading", "backup", name, "error", err.Error())
		return "", &transport.Error{Kind: transport.KindUnknown, Op: "upload", URL: target, Err: err}
	}
	req.ContentLength = info.Size()
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		terr := transport.Classify("upload", target, err)
		switch terr.Kind {
		case transport.KindTimeout:
			c.log.Error("upload timeout", "backup", name, "timeout", c.cfg.Timeout.String())
		case transport.KindNetwork:
			c.log.Error("connection error uploading", "backup", name, "error", err.Error())
		default:
			c.log.Error("request error uploading", "backup", name, "error", err.Error())
		}
		return "", terr
	}
	defer transport.Drain(resp.Body)

	if err := transport.CheckStatus("upload", target, resp, successCodes...); err != nil {
		var terr *transport.Error
		errors.As(err, &terr)
		c.log.Error("upload failed", "backup", name, "status", resp.StatusCode)
		c.log.Error("upload response", "response", terr.Body)
		return "", err
	}

	c.log.Info("upload successful", "backup", name, "status", resp.StatusCode)
	return target, nil
}
