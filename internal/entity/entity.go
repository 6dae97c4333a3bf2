// Package entity turns an outgoing message into a request body.
package entity

import (
	"bytes"
	"compress/gzip"
	"io"
	"sync"

	"github.com/frankli0324/go-soap-http/internal/model"
)

// SerializationError reports that the message failed to write itself.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return "entity: message serialization failed: " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Entity is a replayable request body over a message.
//
// Chunked entities stream the message (through gzip if asked) and report an
// unknown length. Non chunked entities report the message length; when that
// is unknown or the body is gzipped, the bytes are produced once, cached and
// served from the cache for both the length and every write.
type Entity struct {
	msg     model.OutgoingMessage
	chunked bool
	gzip    bool

	mu     sync.Mutex
	done   bool
	cached []byte
	err    error
}

func New(msg model.OutgoingMessage, chunked, gzip bool) *Entity {
	return &Entity{msg: msg, chunked: chunked, gzip: gzip}
}

func (e *Entity) Chunked() bool    { return e.chunked }
func (e *Entity) Repeatable() bool { return true }
func (e *Entity) Streaming() bool  { return false }

func (e *Entity) needsCache() bool {
	return !e.chunked && (e.gzip || e.msg.ContentLength() < 0)
}

// ContentLength is -1 when the length is unknown, the body is then sent
// with chunked transfer coding.
func (e *Entity) ContentLength() int64 {
	if e.chunked {
		return -1
	}
	if e.needsCache() {
		b, err := e.cache()
		if err != nil {
			return -1
		}
		return int64(len(b))
	}
	return e.msg.ContentLength()
}

func (e *Entity) WriteTo(w io.Writer) (int64, error) {
	if e.needsCache() {
		b, err := e.cache()
		if err != nil {
			return 0, err
		}
		n, err := w.Write(b)
		return int64(n), err
	}
	return e.write(w)
}

func (e *Entity) cache() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.done {
		e.done = true
		var buf bytes.Buffer
		if n := e.msg.ContentLength(); n > 0 && !e.gzip {
			buf.Grow(int(n))
		}
		if _, err := e.write(&buf); err != nil {
			e.err = err
		} else {
			e.cached = buf.Bytes()
		}
	}
	return e.cached, e.err
}

func (e *Entity) write(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	var err error
	if e.gzip {
		gz := gzip.NewWriter(cw)
		if _, err = e.msg.WriteTo(gz); err == nil {
			err = gz.Close()
		}
	} else {
		_, err = e.msg.WriteTo(cw)
	}
	// a failing destination shows up as a message error too
	if err != nil && cw.err == nil {
		err = &SerializationError{Err: err}
	}
	return cw.n, err
}

type countWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		c.err = err
	}
	return n, err
}
