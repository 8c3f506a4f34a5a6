package selector

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nickromney-org/ota-release-selector/pkg/types"
)

// field identifies a captured release field for truncation bookkeeping
type field uint8

const (
	fieldName field = 1 << iota
	fieldTagName
	fieldCreatedAt
	fieldDownloadURL
)

var fieldNames = []struct {
	f    field
	name string
}{
	{fieldName, "name"},
	{fieldTagName, "tag_name"},
	{fieldCreatedAt, "created_at"},
	{fieldDownloadURL, "browser_download_url"},
}

// releaseScratch accumulates the release object currently open
type releaseScratch struct {
	id          int64
	name        string
	tagName     string
	createdAt   string
	downloadURL string
	prerelease  bool
	truncated   field
}

func (r *releaseScratch) set(dst *string, f field, value string, max int) {
	v, cut := bound(value, max)
	*dst = v
	if cut {
		r.truncated |= f
	} else {
		r.truncated &^= f
	}
}

func (r *releaseScratch) snapshot() types.Release {
	rel := types.Release{
		ID:          r.id,
		Name:        r.name,
		TagName:     r.tagName,
		CreatedAt:   r.createdAt,
		DownloadURL: r.downloadURL,
		Prerelease:  r.prerelease,
	}
	for _, fn := range fieldNames {
		if r.truncated&fn.f != 0 {
			rel.Truncated = append(rel.Truncated, fn.name)
		}
	}
	return rel
}

// assetScratch accumulates the asset object currently open
type assetScratch struct {
	name          string
	url           string
	nameTruncated bool
	urlTruncated  bool
}

// parseInteger returns 0 for anything that is not a base-10 int64
func parseInteger(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// bound cuts s to at most max bytes without splitting a UTF-8 sequence.
// The result is copied so it does not pin the original token in memory.
func bound(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.Clone(s[:cut]), true
}
