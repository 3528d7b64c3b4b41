package sources

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// GetGitRepositoryContent clones a repository of blog posts and returns
// one post per markdown, text or html file, sorted by path.
func GetGitRepositoryContent(url string, privateKey string) ([]Post, error) {
	tempDir, err := os.MkdirTemp("", "git-repo-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	cloneOptions := &git.CloneOptions{
		URL:           url,
		Depth:         1,
		SingleBranch:  true,
		ReferenceName: plumbing.HEAD,
	}

	if privateKey != "" {
		keyBytes, err := base64.StdEncoding.DecodeString(privateKey)
		if err != nil {
			return nil, err
		}

		auth, err := ssh.NewPublicKeys("git", keyBytes, "")
		if err != nil {
			return nil, err
		}
		cloneOptions.Auth = auth
	}

	if _, err := git.PlainClone(tempDir, false, cloneOptions); err != nil {
		return nil, err
	}

	return postsFromDir(tempDir, strings.TrimSuffix(url, ".git"))
}

// postsFromDir reads every post file below dir. Post urls are built from
// baseURL and the path relative to dir.
func postsFromDir(dir, baseURL string) ([]Post, error) {
	posts := []Post{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}

		if info.IsDir() || !isPostFile(path) {
			return nil
		}

		post, err := GetFileContent(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		post.URL = baseURL + "/" + filepath.ToSlash(rel)
		posts = append(posts, post)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(posts, func(i, j int) bool { return posts[i].URL < posts[j].URL })
	return posts, nil
}

func isPostFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".html", ".htm":
		return true
	}
	return false
}
