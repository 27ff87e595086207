package restyutil

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// FilesystemOutput writes every exchange to its own file in a directory,
// named after the sequence number and the last path segment of the request
// (001-jgxx_clcx.asp.txt).
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func exchangeFilename(e Exchange) string {
	name := "request"
	if u, err := url.Parse(e.Response.Request.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}
	return fmt.Sprintf("%03d-%s.txt", e.Seq, name)
}

func (o FilesystemOutput) Write(e Exchange) {
	filename := filepath.Join(o.directory, exchangeFilename(e))
	err := os.WriteFile(filename, []byte(FormatExchange(e)), 0600)
	if err != nil {
		slog.Warn("failed to write http dump", "file", filename, "err", err)
	}
}
