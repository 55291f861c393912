package ffmpeg

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

type ZipCreator struct{}

func NewZipCreator() *ZipCreator {
	return &ZipCreator{}
}

// CreateZip stores each file under its path relative to baseDir, so the
// original/altered/mask folders survive in the archive.
func (z *ZipCreator) CreateZip(ctx context.Context, baseDir string, filePaths []string, outputPath string) (err error) {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer func() { err = multierr.Append(err, zipFile.Close()) }()

	zipWriter := zip.NewWriter(zipFile)
	defer func() { err = multierr.Append(err, zipWriter.Close()) }()

	for _, fp := range filePaths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name, err := filepath.Rel(baseDir, fp)
		if err != nil {
			return fmt.Errorf("entry name for %s: %w", fp, err)
		}
		if err := addFileToZip(zipWriter, fp, filepath.ToSlash(name)); err != nil {
			return fmt.Errorf("add %s to zip: %w", fp, err)
		}
	}

	return nil
}

func addFileToZip(zw *zip.Writer, filename, name string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}
