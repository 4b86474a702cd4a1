package mealie

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// Backup is one entry of the server's backup listing. Only Name is required.
type Backup struct {
	Name string `json:"name"`
	Date string `json:"date,omitempty"`
	Size Size   `json:"size,omitempty"`
}

// backupList is the body of GET <backups>. The server returns the most recent
// backup first.
type backupList struct {
	Imports []Backup `json:"imports"`
}

type tokenResponse struct {
	FileToken string `json:"fileToken"`
}

// Artifact is a downloaded backup staged on the local filesystem.
type Artifact struct {
	Name     string
	Path     string
	Size     int64
	Checksum string
}

// dateLayouts only cover timestamps that carry a zone. A zoneless date gives
// no way to tell which clock wrote it, so it is never compared to ours.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// CreatedAt parses Date. It reports false for empty, unparseable or zoneless
// timestamps.
func (b Backup) CreatedAt() (time.Time, bool) {
	if b.Date == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, b.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Size is a byte count that the server may report either as a number or as a
// human readable string such as "1.5 MB". Unparseable values decode as zero so
// that one odd entry never hides the rest of a listing.
type Size int64

func (s *Size) UnmarshalJSON(data []byte) error {
	*s = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '"' {
		var n float64
		if err := json.Unmarshal(data, &n); err == nil {
			*s = Size(n)
		}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return nil
	}
	if n, err := units.FromHumanSize(strings.TrimSpace(text)); err == nil {
		*s = Size(n)
	}
	return nil
}

func (s Size) String() string {
	return units.HumanSize(float64(s))
}
