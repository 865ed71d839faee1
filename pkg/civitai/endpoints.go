package civitai

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the images listing endpoint
	DefaultBaseURL = "https://civitai.com/api/v1/images"

	// DefaultPageLimit is the number of images requested per page
	DefaultPageLimit = 100

	// MaxPageLimit is the largest page size the API accepts
	MaxPageLimit = 200

	// MaxUsernameLength bounds what IsValidUsername accepts
	MaxUsernameLength = 64
)

// ListingQuery holds the fixed filters sent with every page request
type ListingQuery struct {
	Username string
	NSFW     string
	Sort     string
	Period   string
	Limit    int
}

// DefaultQuery returns the query for every maturity level, newest first,
// over all time, 100 per page.
func DefaultQuery(username string) ListingQuery {
	return ListingQuery{
		Username: username,
		NSFW:     "X",
		Sort:     "Newest",
		Period:   "AllTime",
		Limit:    DefaultPageLimit,
	}
}

// PageURL builds the listing URL for q, appending cursor when it is set.
// Parameters keep a fixed order so URLs are stable across runs.
func PageURL(baseURL string, q ListingQuery, cursor string) (string, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	} else if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	params := [][2]string{
		{"username", q.Username},
		{"nsfw", q.NSFW},
		{"sort", q.Sort},
		{"period", q.Period},
		{"limit", strconv.Itoa(limit)},
	}
	if cursor != "" {
		params = append(params, [2]string{"cursor", cursor})
	}

	var b strings.Builder
	b.WriteString(baseURL)
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	for _, p := range params {
		if p[1] == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
		sep = "&"
	}

	return b.String(), nil
}

// IsValidUsername checks that username is non-empty, reasonably short, and
// free of whitespace, path separators, and control characters
func IsValidUsername(username string) bool {
	if username == "" || len(username) > MaxUsernameLength {
		return false
	}

	for _, char := range username {
		if char <= ' ' || char == 0x7f || char == '/' || char == '\\' || char == '?' || char == '#' || char == '&' {
			return false
		}
	}

	return true
}

// SanitizeUsername trims whitespace, a leading @, trailing slashes, and
// accepts a profile URL such as https://civitai.com/user/alice
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)

	if u, err := url.Parse(username); err == nil && u.Host != "" {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 && parts[0] == "user" {
			username = parts[1]
		}
	}

	username = strings.TrimPrefix(username, "@")
	username = strings.TrimRight(username, "/ ")

	return username
}
