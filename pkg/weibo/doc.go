// Package weibo is the HTTP fetcher for the mobile JSON API: timeline
// listing pages, full text expansion and image downloads.
//
// Every request goes through one retry policy. Responses are decoded as
// UTF-8, falling back to GBK and finally to lossy UTF-8, so a body is never
// rejected for its encoding alone. Fields missing from a payload decode to
// their zero values; counts accept the abbreviated string forms the API
// sometimes returns.
package weibo
