package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// Storage keeps the original workbooks next to their staged uploads.
type Storage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ArchiveKey builds prefix/<uploadID>/<fileName>.
func ArchiveKey(prefix, uploadID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "workbook.xlsx"
	}
	return path.Join(prefix, uploadID, name)
}
