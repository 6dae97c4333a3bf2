// Package response classifies HTTP responses and turns them into response
// messages or protocol faults.
package response

import (
	"mime"
	"strings"

	"github.com/frankli0324/go-soap-http/internal/model"
)

type Outcome int

const (
	Success Outcome = iota
	Fault
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "fault"
}

// Classify decides whether a response is delivered or turned into a fault.
//
// SOAP12 envelopes carry their own fault signaling, so every status is a
// success. For SOAP11, 2xx succeeds and so does 5xx with a content type
// other than text/html: such a body is a fault envelope, decoded upstream.
func Classify(d model.Dialect, status int, contentType string) Outcome {
	if d == model.SOAP12 {
		return Success
	}
	if status >= 200 && status <= 299 {
		return Success
	}
	if status >= 500 && status <= 599 && contentType != "" && mediaType(contentType) != "text/html" {
		return Success
	}
	return Fault
}

func mediaType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
