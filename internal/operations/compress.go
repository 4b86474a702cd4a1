package operations

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// CompressZstd writes a zstd copy of the artifact at inputPath to
// inputPath+".zst" and returns that path. The artifact itself is kept for the
// regular cleanup; a half-written copy is removed.
func CompressZstd(inputPath string) (outputPath string, err error) {
	src, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(inputPath + ".zst")
	if err != nil {
		return "", fmt.Errorf("create compressed artifact: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close compressed artifact: %w", cerr))
		}
		if err != nil {
			_ = os.Remove(dst.Name())
			outputPath = ""
		}
	}()

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", fmt.Errorf("zstd encoder: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return "", fmt.Errorf("compress artifact: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("flush zstd stream: %w", err)
	}
	return dst.Name(), nil
}
