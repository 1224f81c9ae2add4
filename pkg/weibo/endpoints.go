package weibo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BaseURL is the mobile web host serving the JSON API
	BaseURL = "https://m.weibo.cn"

	// ListingEndpoint returns one page of a user's timeline as cards
	ListingEndpoint = "/api/container/getIndex"

	// LongTextEndpoint returns the untruncated body of a post
	LongTextEndpoint = "/statuses/extend"

	// containerPrefix combined with a user id selects the timeline container
	containerPrefix = "107603"

	// CardTypePost marks a card that carries a post
	CardTypePost = 9

	// ReadMoreMarker is appended by the listing to bodies it truncated
	ReadMoreMarker = "全文"
)

// ListingURL constructs the URL for one page of a user's timeline
func ListingURL(base, userID string, page int) string {
	params := url.Values{}
	params.Set("type", "uid")
	params.Set("value", userID)
	params.Set("containerid", containerPrefix+userID)
	params.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s%s?%s", trimBase(base), ListingEndpoint, params.Encode())
}

// LongTextURL constructs the URL for fetching the full body of a post
func LongTextURL(base, postID string) string {
	params := url.Values{}
	params.Set("id", postID)
	return fmt.Sprintf("%s%s?%s", trimBase(base), LongTextEndpoint, params.Encode())
}

// PermalinkURL returns the public link to a post
func PermalinkURL(postID string) string {
	return BaseURL + "/detail/" + postID
}

// ProfileURL returns the public profile page, used as the Referer
func ProfileURL(userID string) string {
	return BaseURL + "/u/" + userID
}

func trimBase(base string) string {
	if base == "" {
		return BaseURL
	}
	return strings.TrimRight(base, "/")
}
