package civitai

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ListingPage is one page of the images listing
type ListingPage struct {
	Items    []ImageRecord `json:"items"`
	Metadata PageMetadata  `json:"metadata"`
}

// PageMetadata carries the pagination state of a ListingPage
type PageMetadata struct {
	NextCursor Token  `json:"nextCursor"`
	NextPage   string `json:"nextPage,omitempty"`
}

// HasNext reports whether another page follows
func (p *ListingPage) HasNext() bool {
	return p.Metadata.NextCursor != ""
}

// ImageRecord is a single image entry. Only ID and URL are required for a
// download; the remaining fields are informational.
type ImageRecord struct {
	ID        Token  `json:"id"`
	URL       string `json:"url"`
	Hash      string `json:"hash,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Valid reports whether the record carries both an id and a url
func (r ImageRecord) Valid() bool {
	return r.ID != "" && r.URL != ""
}

// Token is an identifier the API sends either as a JSON string or a JSON
// number. Null and values of any other type decode to the empty token, so
// a record with such an id fails Valid instead of failing the whole page.
type Token string

func (t *Token) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Token(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*t = ""
		return nil
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*t = Token(strconv.FormatInt(i, 10))
		return nil
	}
	*t = Token(n.String())
	return nil
}

func (t Token) String() string {
	return string(t)
}
