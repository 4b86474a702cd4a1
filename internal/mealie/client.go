package mealie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kebairia/mealie-backup/internal/config"
	"github.com/kebairia/mealie-backup/internal/logger"
	"github.com/kebairia/mealie-backup/internal/transport"
)

// ErrNoBackup is wrapped when the server does not report the backup that was
// just created.
var ErrNoBackup = errors.New("new backup not found")

// Option configures a Client.
type Option func(*Client)

// Client talks to the Mealie admin backup API.
type Client struct {
	http     *http.Client
	cfg      config.MealieConfig
	headers  http.Header
	log      logger.Logger
	progress bool
	now      func() time.Time
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

// WithProgress shows a progress bar while downloading.
func WithProgress(enabled bool) Option {
	return func(c *Client) {
		c.progress = enabled
	}
}

// WithClock overrides time.Now, used for fallback file names and the
// freshness check after creating a backup.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a client from cfg. The authorization headers are computed
// once here and reused for every call.
func NewClient(cfg config.MealieConfig, opts ...Option) *Client {
	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+cfg.Token)
	headers.Set("Content-Type", "application/json")

	c := &Client{
		http:    transport.NewClient(),
		cfg:     cfg,
		headers: headers,
		log:     logger.Global(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// send issues one request and checks for a 2xx status. The caller owns the
// response body on success.
func (c *Client) send(ctx context.Context, op, method, target string, auth bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, &transport.Error{Kind: transport.KindUnknown, Op: op, URL: target, Err: err}
	}
	if auth {
		for k, v := range c.headers {
			req.Header[k] = v
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transport.Classify(op, target, err)
	}
	if err := transport.CheckStatus(op, target, resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// fail logs err at error level with its kind and returns it.
func (c *Client) fail(msg string, err error, keysAndValues ...any) error {
	kv := append(keysAndValues, "kind", transport.KindOf(err).String(), "error", err.Error())
	var te *transport.Error
	if errors.As(err, &te) && te.Body != "" {
		kv = append(kv, "response", te.Body)
	}
	c.log.Error(msg, kv...)
	return err
}

// HealthCheck reports whether the server answers its health endpoint with a
// non-error status. It is sent without credentials.
func (c *Client) HealthCheck(ctx context.Context) error {
	target := c.cfg.HealthURL()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	resp, err := c.send(ctx, "health check", http.MethodGet, target, false)
	if err != nil {
		return c.fail("health check failed", err, "url", target)
	}
	defer transport.Drain(resp.Body)

	c.log.Info("health check successful", "status", resp.StatusCode)
	return nil
}

// ListBackups returns the backups currently stored on the server, most recent
// first. On failure it returns an empty, non-nil slice along with the error.
func (c *Client) ListBackups(ctx context.Context) ([]Backup, error) {
	target := c.cfg.BackupURL()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	defer cancel()

	resp, err := c.send(ctx, "list backups", http.MethodGet, target, true)
	if err != nil {
		return []Backup{}, c.fail("error fetching backups", err, "url", target)
	}
	defer transport.Drain(resp.Body)

	var list backupList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		perr := &transport.Error{Kind: transport.KindParse, Op: "list backups", URL: target, Err: err}
		return []Backup{}, c.fail("error decoding backups", perr, "url", target)
	}
	if list.Imports == nil {
		list.Imports = []Backup{}
	}

	c.log.Info("fetched backups", "count", len(list.Imports))
	for _, b := range list.Imports {
		c.log.Debug("backup listed", "name", b.Name, "date", b.Date, "size", b.Size.String())
	}
	return list.Imports, nil
}

func (c *Client) backupItemURL(name string) string {
	return config.BuildURL(c.cfg.BackupURL(), url.PathEscape(name))
}

// DeleteBackup removes one named backup from the server.
func (c *Client) DeleteBackup(ctx context.Context, name string) error {
	target := c.backupItemURL(name)
	ctx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	defer cancel()

	resp, err := c.send(ctx, "delete backup", http.MethodDelete, target, true)
	if err != nil {
		return c.fail("error deleting backup", err, "backup", name, "url", target)
	}
	transport.Drain(resp.Body)

	c.log.Info("deleted backup", "backup", name)
	return nil
}

// DeleteSummary counts the outcome of DeleteAllBackups.
type DeleteSummary struct {
	Found   int
	Deleted int
	Failed  int
	Skipped int
}

// DeleteAllBackups lists the server's backups and deletes each named one.
// Entries without a name are skipped, and a failed deletion does not stop the
// remaining ones. A failed listing deletes nothing.
func (c *Client) DeleteAllBackups(ctx context.Context) DeleteSummary {
	backups, _ := c.ListBackups(ctx)

	summary := DeleteSummary{Found: len(backups)}
	c.log.Info("backups found", "count", summary.Found)

	for _, b := range backups {
		if b.Name == "" {
			summary.Skipped++
			continue
		}
		if err := c.DeleteBackup(ctx, b.Name); err != nil {
			summary.Failed++
			continue
		}
		summary.Deleted++
	}

	c.log.Info("existing backups removed",
		"deleted", summary.Deleted,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary
}

// CreateBackup asks the server for a new backup and returns its name. The
// create endpoint does not echo the name, so the listing is fetched again and
// its first entry is taken: the server lists the most recent backup first.
// An empty listing, or a first entry older than the request (minus the
// configured clock skew), fails with ErrNoBackup.
func (c *Client) CreateBackup(ctx context.Context) (string, error) {
	target := c.cfg.BackupURL()
	requested := c.now()

	createCtx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	defer cancel()

	resp, err := c.send(createCtx, "create backup", http.MethodPost, target, true)
	if err != nil {
		return "", c.fail("error creating backup", err, "url", target)
	}
	transport.Drain(resp.Body)
	c.log.Info("backup requested", "status", resp.StatusCode)

	backups, err := c.ListBackups(ctx)
	if err != nil {
		return "", err
	}
	if len(backups) == 0 || backups[0].Name == "" {
		err := &transport.Error{Kind: transport.KindNotFound, Op: "create backup", URL: target, Err: ErrNoBackup}
		return "", c.fail("no backup listed after creation", err, "count", len(backups))
	}

	newest := backups[0]
	if c.cfg.ClockSkew > 0 {
		created, ok := newest.CreatedAt()
		if !ok {
			c.log.Debug("backup date carries no zone, freshness not checked", "backup", newest.Name, "date", newest.Date)
		}
		if ok && created.Before(requested.Add(-c.cfg.ClockSkew)) {
			err := &transport.Error{
				Kind: transport.KindNotFound,
				Op:   "create backup",
				URL:  target,
				Err:  fmt.Errorf("%w: newest backup %q dates from %s, before the request at %s", ErrNoBackup, newest.Name, created.Format(time.RFC3339), requested.Format(time.RFC3339)),
			}
			return "", c.fail("newest backup is stale", err, "backup", newest.Name)
		}
	}

	c.log.Info("new backup created", "backup", newest.Name, "size", newest.Size.String())
	return newest.Name, nil
}

// BackupToken fetches the single-use download token for name. A response
// without a token is logged as a warning and returned as a KindNotFound error.
func (c *Client) BackupToken(ctx context.Context, name string) (string, error) {
	target := c.backupItemURL(name)
	ctx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	defer cancel()

	resp, err := c.send(ctx, "backup token", http.MethodGet, target, true)
	if err != nil {
		return "", c.fail("error getting backup token", err, "backup", name, "url", target)
	}
	defer transport.Drain(resp.Body)

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		perr := &transport.Error{Kind: transport.KindParse, Op: "backup token", URL: target, Err: err}
		return "", c.fail("error decoding backup token", perr, "backup", name)
	}
	if body.FileToken == "" {
		c.log.Warn("no file token found in response", "backup", name)
		return "", &transport.Error{
			Kind: transport.KindNotFound,
			Op:   "backup token",
			URL:  target,
			Err:  fmt.Errorf("no fileToken for %q", name),
		}
	}

	c.log.Info("token retrieved", "backup", name)
	return body.FileToken, nil
}

// Download fetches the artifact authorized by token into dir.
func (c *Client) Download(ctx context.Context, token, dir string) (*Artifact, error) {
	target := c.cfg.DownloadURL() + url.QueryEscape(token)
	// The token itself is a credential and stays out of the logs.
	logURL := c.cfg.DownloadURL()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)
	defer cancel()

	resp, err := c.send(ctx, "download backup", http.MethodGet, target, true)
	if err != nil {
		return nil, c.fail("error downloading backup", redactURL(err, logURL), "url", logURL)
	}
	defer transport.Drain(resp.Body)

	name := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = fallbackFilename(c.now())
	}

	artifact, err := writeArtifact(ctx, dir, name, resp.Body, resp.ContentLength, c.progress)
	if err != nil {
		return nil, c.fail("error writing backup", redactURL(err, logURL), "backup", name, "dir", dir)
	}

	c.log.Info("downloaded backup",
		"backup", artifact.Name,
		"path", artifact.Path,
		"size", Size(artifact.Size).String(),
		"xxhash", artifact.Checksum,
	)
	return artifact, nil
}
