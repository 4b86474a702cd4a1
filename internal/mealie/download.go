package mealie

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash"

	"github.com/kebairia/mealie-backup/internal/progress"
	"github.com/kebairia/mealie-backup/internal/transport"
)

const fallbackTimeFormat = "2006.01.02.15.04.05"

// fallbackFilename names an artifact whose response carried no file name.
func fallbackFilename(t time.Time) string {
	return fmt.Sprintf("mealie_%s.zip", t.Format(fallbackTimeFormat))
}

// filenameFromDisposition extracts a safe base name from a Content-Disposition
// header, or returns "" when there is none.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	var name string
	if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	} else if _, after, ok := strings.Cut(header, "filename="); ok {
		// Servers occasionally send unquoted names with spaces, which the
		// strict parser rejects.
		name, _, _ = strings.Cut(after, ";")
		name = strings.Trim(strings.TrimSpace(name), `"`)
	}

	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == ".." {
		return ""
	}
	return name
}

// writeArtifact streams body into dir/name while hashing it. A partially
// written file is removed.
func writeArtifact(ctx context.Context, dir, name string, body io.Reader, size int64, showProgress bool) (*Artifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &transport.Error{Kind: transport.KindIO, Op: "download backup", Err: fmt.Errorf("create scratch directory %q: %w", dir, err)}
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, &transport.Error{Kind: transport.KindIO, Op: "download backup", Err: fmt.Errorf("create %q: %w", path, err)}
	}

	hash := xxhash.New()
	reader, done := progress.Wrap(showProgress, body, size, "download "+name)
	written, copyErr := io.Copy(io.MultiWriter(f, hash), reader)
	done()
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			if ctx.Err() != nil {
				return nil, transport.Classify("download backup", "", ctx.Err())
			}
			return nil, transport.Classify("download backup", "", copyErr)
		}
		return nil, &transport.Error{Kind: transport.KindIO, Op: "download backup", Err: fmt.Errorf("close %q: %w", path, closeErr)}
	}

	return &Artifact{
		Name:     name,
		Path:     path,
		Size:     written,
		Checksum: fmt.Sprintf("%016x", hash.Sum64()),
	}, nil
}

// redactURL replaces the request URL carried by err, which contains the
// download token, with display.
func redactURL(err error, display string) error {
	var te *transport.Error
	if !errors.As(err, &te) {
		return err
	}
	te.URL = display
	var ue *url.Error
	if errors.As(te.Err, &ue) {
		ue.URL = display
	}
	return err
}
