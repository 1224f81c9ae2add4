package textnorm

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "  hello  ", "hello"},
		{"line breaks", "one<br>two<br />three<BR/>four", "one\ntwo\nthree\nfour"},
		{"tags stripped", `see <a href="/n/x">@someone</a> <span class="url-icon"><img src="x.png"></span>now`, "see @someone now"},
		{"entities", "a&nbsp;b &amp; c &lt;d&gt; &quot;e&quot; it&#39;s&hellip;", `a b & c <d> "e" it's…`},
		{"escaped unicode", `\u5fae\u535a launch`, "微博 launch"},
		{"surrogate pair", `smile \ud83d\ude00`, "smile 😀"},
		{"escaped markup", `\u003cb\u003ebold\u003c/b\u003e`, "bold"},
		{"no double decode", "&amp;lt;", "&lt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeLeavesNoEscapesOrTags(t *testing.T) {
	escape := regexp.MustCompile(`\\u[0-9a-fA-F]{4}`)
	tag := regexp.MustCompile(`<[a-zA-Z/][^>]*>`)

	inputs := []string{
		`\u4eca\u5929<br/><a href="x">link</a>`,
		`\u003cp\u003e\u0041\u0042\u003c/p\u003e`,
		`prefix <span>x</span> suffix`,
	}
	for _, in := range inputs {
		out := Normalize(in)
		assert.False(t, escape.MatchString(out), out)
		assert.False(t, tag.MatchString(out), out)
	}
}

func TestDecodeEscapesInvalidRunUnchanged(t *testing.T) {
	assert.Equal(t, `lone \ud83d here`, DecodeEscapes(`lone \ud83d here`))
	assert.Equal(t, `low \ude00`, DecodeEscapes(`low \ude00`))
	assert.Equal(t, "no escapes", DecodeEscapes("no escapes"))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("Launch Day is here", []string{"launch"}))
	assert.True(t, ContainsAny("anything", nil))
	assert.False(t, ContainsAny("quiet week", []string{"launch", "release"}))
	assert.True(t, ContainsAny("新品发布", []string{"发布"}))
}
