package model

import (
	"net/http"
	"strings"
)

type MimeHeader struct {
	Name, Value string
}

// MimeHeaders is an ordered header list with case-insensitive lookups.
// Names keep the case they were added with. The zero value is empty and
// ready to use; read methods accept a nil receiver.
type MimeHeaders struct {
	headers []MimeHeader
}

func NewMimeHeaders(kv ...string) *MimeHeaders {
	h := &MimeHeaders{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	return h
}

func (h *MimeHeaders) Add(name, value string) {
	h.headers = append(h.headers, MimeHeader{name, value})
}

// Set replaces the first header called name and drops the others, keeping
// the position of the first one.
func (h *MimeHeaders) Set(name, value string) {
	for i := range h.headers {
		if strings.EqualFold(h.headers[i].Name, name) {
			h.headers[i].Value = value
			h.delFrom(i+1, name)
			return
		}
	}
	h.Add(name, value)
}

func (h *MimeHeaders) Del(name string) {
	h.delFrom(0, name)
}

func (h *MimeHeaders) delFrom(start int, name string) {
	kept := h.headers[:start]
	for _, hd := range h.headers[start:] {
		if !strings.EqualFold(hd.Name, name) {
			kept = append(kept, hd)
		}
	}
	h.headers = kept
}

func (h *MimeHeaders) Values(name string) []string {
	if h == nil {
		return nil
	}
	var vs []string
	for _, hd := range h.headers {
		if strings.EqualFold(hd.Name, name) {
			vs = append(vs, hd.Value)
		}
	}
	return vs
}

// Get returns the first value of name, or "".
func (h *MimeHeaders) Get(name string) string {
	if h == nil {
		return ""
	}
	for _, hd := range h.headers {
		if strings.EqualFold(hd.Name, name) {
			return hd.Value
		}
	}
	return ""
}

func (h *MimeHeaders) Has(name string) bool {
	return len(h.Values(name)) != 0
}

// All returns the headers in insertion order. The slice must not be modified.
func (h *MimeHeaders) All() []MimeHeader {
	if h == nil {
		return nil
	}
	return h.headers
}

func (h *MimeHeaders) Len() int {
	if h == nil {
		return 0
	}
	return len(h.headers)
}

func (h *MimeHeaders) Clone() *MimeHeaders {
	if h == nil {
		return nil
	}
	return &MimeHeaders{headers: append([]MimeHeader(nil), h.headers...)}
}

// HTTPHeader converts to a canonicalized net/http header map.
func (h *MimeHeaders) HTTPHeader() http.Header {
	out := make(http.Header, h.Len())
	for _, hd := range h.All() {
		out.Add(hd.Name, hd.Value)
	}
	return out
}
