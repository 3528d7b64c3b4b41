package sources

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mudler/xlog"
	sitemap "github.com/oxffaa/gopher-parse-sitemap"
	"golang.org/x/net/html"
	"jaytaylor.com/html2text"
)

func GetWebPage(url string) (Post, error) {
	resp, err := http.Get(url)
	if err != nil {
		return Post{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Post{}, fmt.Errorf("unexpected status fetching %s: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Post{}, err
	}

	content, err := HTMLToText(string(body))
	if err != nil {
		return Post{}, err
	}

	return Post{URL: url, Title: htmlTitle(string(body)), Content: content}, nil
}

// HTMLToText converts a page to plain text, leaving out link targets.
func HTMLToText(page string) (string, error) {
	return html2text.FromString(page, html2text.Options{OmitLinks: true})
}

func htmlTitle(page string) string {
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" && z.Next() == html.TextToken {
				return strings.TrimSpace(string(z.Text()))
			}
		}
	}
}

func GetWebSitemapContent(url string) (res []Post, err error) {
	err = sitemap.ParseFromSite(url, func(e sitemap.Entry) error {
		xlog.Info("Sitemap page: " + e.GetLocation())
		post, err := GetWebPage(e.GetLocation())
		if err != nil {
			xlog.Warn("Skipping sitemap page", "url", e.GetLocation(), "error", err)
			return nil
		}
		res = append(res, post)
		return nil
	})
	return
}
