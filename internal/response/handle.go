package response

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/frankli0324/go-soap-http/internal/cookie"
	"github.com/frankli0324/go-soap-http/internal/fault"
	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/obs"
	"github.com/jpillora/sizestr"
	"golang.org/x/net/html/charset"
)

// MaxFaultDetail bounds how much of a fault response body is kept.
const MaxFaultDetail = 64 << 10

type Handler struct {
	Log obs.Logger
}

// Handle classifies resp for the call in cc. A fault is returned as a
// *fault.Fault with the connection already released. On success the
// response metadata and session cookies are written to cc and the
// returned message owns the connection until its Body is closed.
func (h *Handler) Handle(cc *model.CallContext, resp *model.Response) (*model.Message, error) {
	log := obs.With(h.Log, "response: ")
	cc.ResponseStatus = resp.StatusCode
	cc.ResponseReason = resp.Reason()

	contentType := resp.Header.Get(model.HeaderContentType)
	if Classify(cc.Dialect, resp.StatusCode, contentType) == Fault {
		detail := faultDetail(resp, contentType)
		log.Logf(obs.Debug, "(%d) %s classified as fault, detail %s", resp.StatusCode, cc.ResponseReason, sizestr.ToString(int64(len(detail))))
		return nil, fault.Protocol(resp.StatusCode, cc.ResponseReason, detail)
	}

	body, err := decodedBody(resp)
	if err != nil {
		return nil, err
	}
	msg := &model.Message{
		Body:            body,
		ContentType:     contentType,
		ContentLocation: resp.Header.Get(model.HeaderContentLocation),
		Headers:         mimeHeaders(resp.Header),
	}
	cc.ResponseMessage = msg

	if cc.MaintainSession {
		for _, name := range []string{model.HeaderSetCookie, model.HeaderSetCookie2} {
			slot, _ := cookie.SlotFor(name)
			for _, v := range resp.Header.Values(name) {
				cookie.Record(cc, slot, v)
			}
		}
	}
	return msg, nil
}

// decodedBody wraps the response body so that closing it releases the
// connection exactly once. Empty bodies are released right away.
func decodedBody(resp *model.Response) (io.ReadCloser, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get(model.HeaderContentEncoding)))
	switch enc {
	case "", "identity", model.EncodingGzip, "x-gzip":
	default:
		closeBody(resp)
		return nil, fault.UnsupportedEncoding(resp.StatusCode, enc)
	}
	if resp.Body == nil || resp.Body == http.NoBody || resp.ContentLength == 0 {
		closeBody(resp)
		return http.NoBody, nil
	}
	rc := &onceCloser{ReadCloser: resp.Body}
	if enc == model.EncodingGzip || enc == "x-gzip" {
		return &gzipReader{body: rc}, nil
	}
	return rc, nil
}

// faultDetail reads at most MaxFaultDetail bytes of the body, decoded to
// UTF-8 when possible, and releases the connection. Read errors only
// shorten the detail.
func faultDetail(resp *model.Response, contentType string) string {
	if resp.Body == nil {
		return ""
	}
	defer resp.Body.Close()
	var r io.Reader = resp.Body
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get(model.HeaderContentEncoding)))
	if enc == model.EncodingGzip || enc == "x-gzip" {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return ""
		}
		r = zr
	}
	raw, _ := io.ReadAll(io.LimitReader(r, MaxFaultDetail))
	if len(raw) == 0 {
		return ""
	}
	dr, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(dr)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func mimeHeaders(h http.Header) *model.MimeHeaders {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := &model.MimeHeaders{}
	for _, k := range keys {
		for _, v := range h[k] {
			out.Add(k, v)
		}
	}
	return out
}

func closeBody(resp *model.Response) {
	if resp.Body != nil {
		resp.Body.Close()
	}
}

type onceCloser struct {
	io.ReadCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() { c.err = c.ReadCloser.Close() })
	return c.err
}

// gzipReader calls gzip.NewReader on the first Read. Closing it closes the
// underlying body only; the gzip reader holds no resource of its own.
type gzipReader struct {
	body *onceCloser
	zr   *gzip.Reader
	zerr error // sticky
}

func (gz *gzipReader) Read(p []byte) (int, error) {
	if gz.zr == nil {
		if gz.zerr == nil {
			gz.zr, gz.zerr = gzip.NewReader(gz.body)
		}
		if gz.zerr != nil {
			return 0, gz.zerr
		}
	}
	return gz.zr.Read(p)
}

func (gz *gzipReader) Close() error {
	return gz.body.Close()
}
