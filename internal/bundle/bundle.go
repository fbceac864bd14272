// Package bundle assembles the export zip for a completed map: the saved
// background, the rewritten config, and the final composed image.
package bundle

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Result describes the outcome of adding a single file to the bundle.
type Result struct {
	Filename string
	Err      string
}

// Build writes the given files into a zip at destZipPath. It always returns
// a results slice of the same length as paths; files that cannot be read
// are recorded in their Result and omitted from the archive. Build fails
// outright only when the zip itself cannot be produced or every file is
// missing.
func Build(ctx context.Context, destZipPath string, paths []string) ([]Result, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files provided")
	}
	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o750); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	zipFile, err := os.Create(destZipPath) //nolint:gosec // path constructed by the application
	if err != nil {
		return nil, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zipFile.Close() }()
	zipWriter := zip.NewWriter(zipFile)

	results := make([]Result, len(paths))
	added := 0
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("bundle cancelled: %w", err)
		}
		results[i] = addFile(zipWriter, p)
		if results[i].Err == "" {
			added++
		}
	}

	if err := zipWriter.Close(); err != nil {
		return results, fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		return results, fmt.Errorf("close zip file: %w", err)
	}
	if added == 0 {
		return results, errors.New("no files could be bundled")
	}
	return results, nil
}

func addFile(zipWriter *zip.Writer, path string) Result {
	result := Result{Filename: filepath.Base(path)}
	src, err := os.Open(path) //nolint:gosec // paths come from the artifact store
	if err != nil {
		result.Err = err.Error()
		log.Warn().Str("path", path).Err(err).Msg("bundle: open file failed")
		return result
	}
	defer func() { _ = src.Close() }()

	entry, err := zipWriter.Create(result.Filename)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	if _, err := io.Copy(entry, src); err != nil {
		result.Err = err.Error()
	}
	return result
}
