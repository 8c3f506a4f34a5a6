package types

// Release is a release selected from a GitHub releases document, annotated
// with the download URL of the asset that matched the requested filename.
type Release struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	TagName     string `json:"tag_name" yaml:"tag_name"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
	DownloadURL string `json:"download_url" yaml:"download_url"`
	Prerelease  bool   `json:"prerelease" yaml:"prerelease"`

	// Truncated lists the source fields whose values were cut to fit their
	// maximum length
	Truncated []string `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// IsTruncated reports whether any field of the release was shortened
func (r Release) IsTruncated() bool {
	return len(r.Truncated) > 0
}
