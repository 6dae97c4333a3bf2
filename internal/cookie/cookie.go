// Package cookie keeps session cookies on the call context between calls.
// Cookies are stored as received, without attributes, and echoed back
// verbatim; there is no expiry or path handling.
package cookie

import (
	"strings"

	"github.com/frankli0324/go-soap-http/internal/model"
)

// Line is one cookie header to send.
type Line struct {
	Name, Value string
}

// Record stores raw (the value of a Set-Cookie header) in the slot for
// header, replacing an earlier cookie with the same name.
func Record(cc *model.CallContext, header, raw string) {
	c := cleanup(raw)
	if c == "" {
		return
	}
	k := key(c)
	if cc.Cookies == nil {
		cc.Cookies = map[string]model.CookieSlot{}
	}
	slot := cc.Cookies[header]
	for i, old := range slot {
		if key(old) == k {
			slot[i] = c
			return
		}
	}
	cc.Cookies[header] = append(slot, c)
}

// Emit returns the cookie headers to send, Cookie first, then Cookie2.
func Emit(cc *model.CallContext) []Line {
	var lines []Line
	for _, h := range []string{model.HeaderCookie, model.HeaderCookie2} {
		for _, v := range cc.Cookies[h] {
			lines = append(lines, Line{h, v})
		}
	}
	return lines
}

// SlotFor maps a response header to the slot its cookies are stored in.
func SlotFor(responseHeader string) (string, bool) {
	switch {
	case strings.EqualFold(responseHeader, model.HeaderSetCookie):
		return model.HeaderCookie, true
	case strings.EqualFold(responseHeader, model.HeaderSetCookie2):
		return model.HeaderCookie2, true
	}
	return "", false
}

// cleanup drops the attributes after the first ';'.
func cleanup(raw string) string {
	c := strings.TrimSpace(raw)
	if i := strings.IndexByte(c, ';'); i != -1 {
		c = c[:i]
	}
	return c
}

func key(c string) string {
	if i := strings.IndexByte(c, '='); i != -1 {
		return c[:i]
	}
	return c
}
