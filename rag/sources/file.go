package sources

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/mudler/xlog"
)

// GetFileContent reads a local post. Supported formats are pdf, html,
// markdown and plain text. The title is the file name without extension.
func GetFileContent(path string) (Post, error) {
	if _, err := os.Stat(path); err != nil {
		return Post{}, fmt.Errorf("file does not exist: %s", path)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	post := Post{URL: "file://" + path, Title: title}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		r, err := pdf.Open(path)
		if err != nil {
			return Post{}, err
		}
		var buf bytes.Buffer
		b, err := r.GetPlainText()
		if err != nil {
			return Post{}, err
		}
		if _, err := buf.ReadFrom(b); err != nil {
			return Post{}, err
		}
		post.Content = buf.String()
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return Post{}, err
		}
		content, err := HTMLToText(string(data))
		if err != nil {
			return Post{}, err
		}
		post.Content = content
		if t := htmlTitle(string(data)); t != "" {
			post.Title = t
		}
	case ".txt", ".md", ".markdown":
		xlog.Debug("Reading text file", "path", path)
		data, err := os.ReadFile(path)
		if err != nil {
			return Post{}, err
		}
		post.Content = string(data)
	default:
		return Post{}, fmt.Errorf("unsupported file type: %s", ext)
	}

	return post, nil
}
