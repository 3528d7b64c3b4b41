package sources

// Post is a blog post fetched from a source, already converted to text.
type Post struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Config holds the credentials some sources need.
type Config struct {
	// GitPrivateKey is a base64 encoded ssh key for private repositories.
	GitPrivateKey string
}
