package sources

import (
	"net/url"
	"strings"

	"github.com/mudler/xlog"
)

// IsRemote reports whether location is fetched over the network: a web
// page, a sitemap or a git remote.
func IsRemote(location string) bool {
	if strings.HasPrefix(location, "git@") {
		return true
	}
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ssh", "git":
		return true
	}
	return false
}

// SourceRouter fetches the posts behind a source location: a git
// repository, a sitemap, a local file or a single web page.
func SourceRouter(url string, config *Config) ([]Post, error) {
	xlog.Info("Downloading content from", "url", url)
	switch {
	case strings.HasSuffix(url, ".git") || strings.HasPrefix(url, "git@"):
		key := ""
		if config != nil {
			key = config.GitPrivateKey
		}
		return GetGitRepositoryContent(url, key)
	case strings.HasSuffix(url, "sitemap.xml"):
		posts, err := GetWebSitemapContent(url)
		if err != nil {
			return nil, err
		}
		xlog.Info("Downloaded all content from sitemap", "url", url, "posts", len(posts))
		return posts, nil
	case strings.HasPrefix(url, "file://"):
		post, err := GetFileContent(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return nil, err
		}
		return []Post{post}, nil
	}

	post, err := GetWebPage(url)
	if err != nil {
		return nil, err
	}
	return []Post{post}, nil
}
