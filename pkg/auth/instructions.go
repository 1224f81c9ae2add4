package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieGuide prints how to copy the session cookie out of a browser
func ShowCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "WEIBO SESSION COOKIE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Most public timelines load without a session. When the API starts")
	fmt.Fprintln(w, "answering with empty pages or ok=0, a logged in cookie helps.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open https://m.weibo.cn in a browser and log in.")
	fmt.Fprintln(w, "2. Open the developer tools (F12) and switch to the Network tab.")
	fmt.Fprintln(w, "3. Reload, click any request to m.weibo.cn and open its headers.")
	fmt.Fprintln(w, "4. Copy the whole value of the Cookie request header.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The value must contain SUB=...; the other pairs may stay.")
	fmt.Fprintln(w, "The cookie grants access to the account. It is stored in the system")
	fmt.Fprintln(w, "keychain or an encrypted file and never printed in full.")
	fmt.Fprintln(w, rule)
}
