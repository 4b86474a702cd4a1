package progress

import (
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
)

const (
	// prefixKey holds the bar's description. Keeping it in a bar element
	// rather than in the template text lets any file name render as is.
	prefixKey = "prefix"

	sizedTemplate   = `{{string . "prefix"}} {{ bar . "[" "=" ">" " " "]"}} {{speed . }} {{percent . }} {{rtime . " ETA"}}`
	unsizedTemplate = `{{string . "prefix"}} {{ counters . }} {{speed . }}`
)

// Reader wraps an io.Reader with a terminal progress bar.
type Reader struct {
	reader io.Reader
	bar    *pb.ProgressBar
}

// NewReader starts a bar for r. A size <= 0 renders a bar without a total.
func NewReader(r io.Reader, size int64, description string) *Reader {
	return newReader(r, size, description, true)
}

func newReader(r io.Reader, size int64, description string, start bool) *Reader {
	tmpl := sizedTemplate
	if size <= 0 {
		tmpl = unsizedTemplate
		size = 0
	}

	bar := pb.New64(size)
	bar.Set(pb.Bytes, true)
	bar.Set(pb.SIBytesPrefix, true)
	bar.Set(prefixKey, description)
	bar.SetTemplateString(tmpl)
	bar.SetRefreshRate(100 * time.Millisecond)
	if start {
		bar.Start()
	}

	return &Reader{
		reader: bar.NewProxyReader(r),
		bar:    bar,
	}
}

// Read implements io.Reader
func (pr *Reader) Read(p []byte) (n int, err error) {
	return pr.reader.Read(p)
}

// Close finishes the progress bar. It does not close the wrapped reader.
func (pr *Reader) Close() error {
	pr.bar.Finish()
	return nil
}

// Wrap returns r unchanged when enabled is false, and a progress Reader
// otherwise. The returned closer must be called once reading is done.
func Wrap(enabled bool, r io.Reader, size int64, description string) (io.Reader, func()) {
	if !enabled {
		return r, func() {}
	}
	pr := NewReader(r, size, description)
	return pr, func() { _ = pr.Close() }
}
