package weibo

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ListingResponse is one page of the timeline listing
type ListingResponse struct {
	OK   FlexInt `json:"ok"`
	Msg  string  `json:"msg"`
	Data struct {
		Cards        []Card `json:"cards"`
		CardlistInfo struct {
			Total FlexInt `json:"total"`
		} `json:"cardlistInfo"`
	} `json:"data"`
}

// Posts returns the posts carried by the page's cards in order
func (r *ListingResponse) Posts() []*Mblog {
	var out []*Mblog
	for _, c := range r.Data.Cards {
		if int(c.CardType) == CardTypePost && c.Mblog != nil {
			out = append(out, c.Mblog)
		}
	}
	return out
}

// Card is one entry of a listing page
type Card struct {
	CardType FlexInt `json:"card_type"`
	Mblog    *Mblog  `json:"mblog"`
}

// Mblog is a post as the API returns it
type Mblog struct {
	ID              FlexString `json:"id"`
	MID             FlexString `json:"mid"`
	CreatedAt       string     `json:"created_at"`
	Text            string     `json:"text"`
	Source          string     `json:"source"`
	RepostsCount    FlexInt    `json:"reposts_count"`
	CommentsCount   FlexInt    `json:"comments_count"`
	AttitudesCount  FlexInt    `json:"attitudes_count"`
	IsLongText      FlexBool   `json:"isLongText"`
	Pics            []Pic      `json:"pics"`
	User            *User      `json:"user"`
	RetweetedStatus *Mblog     `json:"retweeted_status"`
}

// Pic is an attached image
type Pic struct {
	PID   string `json:"pid"`
	URL   string `json:"url"`
	Large *struct {
		URL string `json:"url"`
	} `json:"large"`
}

// ImageURL prefers the large rendition and falls back to the default one
func (p Pic) ImageURL() string {
	if p.Large != nil && p.Large.URL != "" {
		return p.Large.URL
	}
	return p.URL
}

// User is the author block of a post
type User struct {
	ID         FlexString `json:"id"`
	ScreenName string     `json:"screen_name"`
}

// LongTextResponse is returned by the full text endpoint
type LongTextResponse struct {
	OK   FlexInt `json:"ok"`
	Data struct {
		LongTextContent string `json:"longTextContent"`
	} `json:"data"`
}

// CreatedAtLayout is the timestamp format used by the API
const CreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// ParseCreatedAt parses an API timestamp
func ParseCreatedAt(s string) (time.Time, bool) {
	t, err := time.Parse(CreatedAtLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FlexString accepts a JSON string or number
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(b)
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexInt accepts numbers and the abbreviated strings the API uses for large
// counts ("1,024", "3万", "100万+", "1.2亿"). Anything unreadable is zero.
type FlexInt int64

var countPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*(万|亿)?\+?$`)

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	var raw string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			*f = 0
			return nil
		}
	} else {
		raw = string(b)
	}
	*f = FlexInt(ParseCount(raw))
	return nil
}

// ParseCount reads a count that may carry separators or a Chinese magnitude
// suffix. Negative or unreadable values give zero.
func ParseCount(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	m := countPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch m[2] {
	case "万":
		v *= 1e4
	case "亿":
		v *= 1e8
	}
	return int64(math.Round(v))
}

// FlexBool accepts true/false, 0/1 and their quoted forms
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseBool(s)
	if err != nil {
		*f = false
		return nil
	}
	*f = FlexBool(v)
	return nil
}
