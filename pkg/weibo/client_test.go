package weibo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/retry"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveRequest(endpoint string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("%s:%d", endpoint, status))
}

func newTestClient(t *testing.T, base string, attempts int, obs Observer) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL:  base,
		Timeout:  5 * time.Second,
		Retry:    retry.ConstantConfig(attempts, time.Millisecond, logger.NewNopLogger()),
		Logger:   logger.NewNopLogger(),
		Observer: obs,
	})
	require.NoError(t, err)
	return c
}

const listingPage = `{
  "ok": 1,
  "data": {
    "cards": [
      {"card_type": 11},
      {"card_type": 9, "mblog": {
        "id": "5001", "mid": 5001,
        "created_at": "Thu Apr 24 10:30:00 +0800 2025",
        "text": "hello<br/>world",
        "reposts_count": "1,024", "comments_count": "3万", "attitudes_count": 7,
        "isLongText": true,
        "pics": [{"url": "http://img/small.jpg", "large": {"url": "http://img/large.jpg"}}, {"url": "http://img/only.png"}],
        "retweeted_status": {"id": "4001", "text": "orig", "user": {"screen_name": "author"}}
      }}
    ]
  }
}`

func TestFetchListing(t *testing.T) {
	var gotReferer, gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ListingEndpoint, r.URL.Path)
		gotReferer = r.Header.Get("Referer")
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(listingPage))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	c := newTestClient(t, server.URL, 1, obs)

	resp, err := c.FetchListing(context.Background(), "42", 2)
	require.NoError(t, err)

	assert.Equal(t, "https://m.weibo.cn/u/42", gotReferer)
	assert.Contains(t, gotUA, "iPhone")
	assert.Contains(t, gotQuery, "containerid=10760342")
	assert.Contains(t, gotQuery, "page=2")
	assert.Equal(t, []string{"listing:200"}, obs.calls)

	posts := resp.Posts()
	require.Len(t, posts, 1)
	p := posts[0]
	assert.Equal(t, "5001", p.ID.String())
	assert.Equal(t, "5001", p.MID.String())
	assert.Equal(t, FlexInt(1024), p.RepostsCount)
	assert.Equal(t, FlexInt(30000), p.CommentsCount)
	assert.Equal(t, FlexInt(7), p.AttitudesCount)
	assert.True(t, bool(p.IsLongText))
	require.Len(t, p.Pics, 2)
	assert.Equal(t, "http://img/large.jpg", p.Pics[0].ImageURL())
	assert.Equal(t, "http://img/only.png", p.Pics[1].ImageURL())
	require.NotNil(t, p.RetweetedStatus)
	assert.Equal(t, "author", p.RetweetedStatus.User.ScreenName)
}

func TestFetchListingNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":0,"msg":"这里还没有内容"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3, nil)
	_, err := c.FetchListing(context.Background(), "42", 1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeDecode))
}

func TestFetchListingMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>blocked</html>`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3, nil)
	_, err := c.FetchListing(context.Background(), "42", 1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeDecode))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3, nil)
	body, err := c.Fetch(context.Background(), server.URL+"/anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 2, nil)
	_, err := c.Fetch(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, errs.Is(err, errs.ErrorTypeServerError))
}

func TestFetchRetriesAfterTimeout(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c, err := NewClient(Options{
		BaseURL: server.URL,
		Timeout: 100 * time.Millisecond,
		Retry:   retry.ConstantConfig(3, time.Millisecond, logger.NewNopLogger()),
		Logger:  logger.NewNopLogger(),
	})
	require.NoError(t, err)

	body, err := c.Fetch(context.Background(), server.URL+"/slow", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3, nil)
	_, err := c.Download(context.Background(), server.URL+"/missing.jpg")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
}

func TestFetchLongText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, LongTextEndpoint, r.URL.Path)
		switch r.URL.Query().Get("id") {
		case "1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":   1,
				"data": map[string]string{"longTextContent": "the whole<br/>story"},
			})
		default:
			w.Write([]byte(`{"ok":0}`))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 1, nil)

	text, err := c.FetchLongText(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "the whole<br/>story", text)

	_, err = c.FetchLongText(context.Background(), "2")
	assert.Error(t, err)
}

func TestInsecureSkipVerify(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	relaxed, err := NewClient(Options{InsecureSkipVerify: true, Retry: retry.ConstantConfig(1, 0, nil), Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	body, err := relaxed.Fetch(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "secure", string(body))

	strict, err := NewClient(Options{InsecureSkipVerify: false, Retry: retry.ConstantConfig(1, 0, nil), Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	_, err = strict.Fetch(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
}

func TestCookieHeader(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Cookie")
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL, Cookie: "SUB=abc", Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "SUB=abc", got)
}

func TestFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := NewClient(Options{Retry: retry.ConstantConfig(5, time.Hour, nil), Logger: logger.NewNopLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.Fetch(ctx, server.URL, nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDecodeBody(t *testing.T) {
	assert.Equal(t, "微博", DecodeBody([]byte("微博")))

	gbk, err := simplifiedchinese.GBK.NewEncoder().String(`{"text":"新品发布会"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"text":"新品发布会"}`, DecodeBody([]byte(gbk)))

	assert.Equal(t, "a\uFFFDb", DecodeBody([]byte{'a', 0xff, 'b'}))
}
