package chunked

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	w := NewWriter(&wire)
	for _, s := range []string{"<Envelope>", "", strings.Repeat("x", 300), "</Envelope>"} {
		if _, err := w.Write([]byte(s)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	want := "<Envelope>" + strings.Repeat("x", 300) + "</Envelope>"
	if err := iotest.TestReader(NewReader(&wire), []byte(want)); err != nil {
		t.Error(err)
	}
}

type tCase struct {
	wire string
	body string
	rest string
	bad  bool
}

var reads = map[string]tCase{
	"Simple":      {wire: "5\r\nhello\r\n0\r\n\r\nNEXT", body: "hello", rest: "NEXT"},
	"Extensions":  {wire: "5;name=v\r\nhello\r\n0\r\n\r\n", body: "hello"},
	"Trailer":     {wire: "3\r\nabc\r\n0\r\nX-Sum: 1\r\n\r\nNEXT", body: "abc", rest: "NEXT"},
	"UpperHex":    {wire: "A\r\n0123456789\r\n0\r\n\r\n", body: "0123456789"},
	"BadLength":   {wire: "zz\r\nhello\r\n", bad: true},
	"MissingCRLF": {wire: "5\r\nhelloXX0\r\n\r\n", bad: true},
	"Truncated":   {wire: "5\r\nhel", bad: true},
	"NoLastChunk": {wire: "5\r\nhello\r\n", bad: true},
	"EmptyLength": {wire: "\r\n", bad: true},
}

func TestRead(t *testing.T) {
	for name, cas := range reads {
		tCase := cas
		t.Run(name, func(t *testing.T) {
			br := bufio.NewReader(strings.NewReader(tCase.wire))
			got, err := io.ReadAll(NewReader(br))
			if tCase.bad {
				if err == nil {
					t.Errorf("read %q without error", got)
				}
				return
			}
			if err != nil || string(got) != tCase.body {
				t.Fatalf("got %q, %v", got, err)
			}
			rest, _ := io.ReadAll(br)
			if string(rest) != tCase.rest {
				t.Errorf("left %q on the wire, want %q", rest, tCase.rest)
			}
		})
	}
}
