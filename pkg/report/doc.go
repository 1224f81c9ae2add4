// Package report renders collected posts as a Markdown document and a
// self-contained HTML page.
//
// Markdown links images relative to the reports directory
// (../images/{name}); the HTML page embeds them as base64 data URIs so it
// can be opened on its own. Only images present in the ImageSource are
// referenced, so a failed download drops that one image and nothing else.
//
// Rendering is a pure function of the posts and the Meta snapshot. The
// generation time is part of Meta, which keeps repeated renders
// byte-identical.
package report
