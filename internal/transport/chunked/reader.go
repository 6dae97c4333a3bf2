package chunked

import (
	"bufio"
	"errors"
	"io"
)

var ErrMalformed = errors.New("malformed chunked encoding")

// NewReader decodes a chunked body. Reading stops after the last chunk and
// its trailer, leaving r positioned at the next message.
func NewReader(r io.Reader) io.Reader {
	var br *bufio.Reader
	if v, ok := r.(*bufio.Reader); ok {
		br = v
	} else {
		br = bufio.NewReader(r)
	}
	return &chunkedReader{Reader: br}
}

type chunkedReader struct {
	*bufio.Reader
	currentChunk                   io.Reader
	currentCount, currentChunkSize int64
	eof                            bool
}

func (c *chunkedReader) readLine() ([]byte, error) {
	line, isPref, err := c.ReadLine()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if isPref {
		return nil, errors.New("http chunk line too long")
	}
	return line, nil
}

func (c *chunkedReader) readChunkHeader() (len uint64, err error) {
	line, err := c.readLine()
	if err != nil {
		return 0, err
	}
	cnt := 0
	for _, b := range line {
		if b == ';' || b == ' ' || b == '\t' {
			break // chunk extensions are ignored
		}
		cnt++
		switch {
		case '0' <= b && b <= '9':
			b = b - '0'
		case 'a' <= b && b <= 'f':
			b = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			b = b - 'A' + 10
		default:
			return 0, errors.New("invalid byte in chunk length")
		}
		len <<= 4
		len |= uint64(b)
	}
	if cnt == 0 {
		return 0, errors.New("empty chunk length")
	}
	if cnt >= 16 {
		return 0, errors.New("http chunk length too large")
	}
	return
}

// skipTrailer consumes trailer fields up to the empty line ending the body.
func (c *chunkedReader) skipTrailer() error {
	for {
		line, err := c.readLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}

func (c *chunkedReader) Read(p []byte) (n int, err error) {
	if c.eof {
		return 0, io.EOF
	}
	if c.currentChunk == nil {
		l, err := c.readChunkHeader()
		if err != nil {
			return n, err
		}
		if l == 0 {
			if err := c.skipTrailer(); err != nil {
				return 0, err
			}
			c.eof = true
			return 0, io.EOF
		}
		c.currentChunk = io.LimitReader(c.Reader, int64(l))
		c.currentChunkSize = int64(l)
	}
	n, err = c.currentChunk.Read(p)
	c.currentCount += int64(n)
	if err == io.EOF || (err == nil && c.currentCount == c.currentChunkSize) {
		if c.currentCount != c.currentChunkSize {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
		dr, _ := c.Reader.ReadByte()
		dn, rerr := c.Reader.ReadByte()
		if rerr != nil {
			if rerr == io.EOF {
				rerr = io.ErrUnexpectedEOF
			}
			return n, rerr
		}
		if dr != '\r' || dn != '\n' {
			return n, ErrMalformed
		}
		c.currentChunk = nil
		c.currentCount = 0
	}
	return
}
