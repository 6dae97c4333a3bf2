package model

import (
	"bytes"
	"io"
)

// OutgoingMessage is a serialized envelope ready to be sent. WriteTo may be
// called more than once and must produce the same bytes every time.
type OutgoingMessage interface {
	WriteTo(w io.Writer) (int64, error)
	ContentLength() int64 // -1 if unknown
	ContentType() string
	MimeHeaders() *MimeHeaders
}

// BytesMessage is an OutgoingMessage backed by a byte slice.
type BytesMessage struct {
	Data    []byte
	Type    string
	Headers *MimeHeaders
}

func (m *BytesMessage) WriteTo(w io.Writer) (int64, error) {
	return bytes.NewReader(m.Data).WriteTo(w)
}

func (m *BytesMessage) ContentLength() int64      { return int64(len(m.Data)) }
func (m *BytesMessage) ContentType() string       { return m.Type }
func (m *BytesMessage) MimeHeaders() *MimeHeaders { return m.Headers }

// FuncMessage serializes through Write on every call. Length may be -1.
type FuncMessage struct {
	Write   func(w io.Writer) error
	Length  int64
	Type    string
	Headers *MimeHeaders
}

func (m *FuncMessage) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := m.Write(cw)
	return cw.n, err
}

func (m *FuncMessage) ContentLength() int64      { return m.Length }
func (m *FuncMessage) ContentType() string       { return m.Type }
func (m *FuncMessage) MimeHeaders() *MimeHeaders { return m.Headers }

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Message is the response delivered to the caller. Closing Body returns the
// pooled connection; it must always be closed.
type Message struct {
	Body            io.ReadCloser
	ContentType     string
	ContentLocation string
	Headers         *MimeHeaders
}
