// Package request builds the HTTP request for one call from its context and
// outgoing message.
package request

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/frankli0324/go-soap-http/internal/auth"
	"github.com/frankli0324/go-soap-http/internal/config"
	"github.com/frankli0324/go-soap-http/internal/cookie"
	"github.com/frankli0324/go-soap-http/internal/entity"
	"github.com/frankli0324/go-soap-http/internal/model"
	"golang.org/x/net/http/httpguts"
)

// Builder is stateless apart from the read-only client properties, one
// Builder serves every call of a sender.
type Builder struct {
	Props config.ClientProperties

	// Hostname names the workstation in NTLM credentials, os.Hostname if nil.
	Hostname func() (string, error)
}

// Build prepares the request for target. Credentials found on the context
// or in the URL user info are registered in store.
func (b *Builder) Build(cc *model.CallContext, msg model.OutgoingMessage, target *url.URL, store *auth.Store) (*model.PreparedRequest, error) {
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("request: unsupported scheme %q", target.Scheme)
	}
	if target.Host == "" {
		return nil, url.InvalidHostError("empty host")
	}

	u := *target
	u.User = nil
	pr := &model.PreparedRequest{
		Method:     "POST",
		U:          &u,
		Proto:      model.HTTP11,
		Header:     &model.MimeHeaders{},
		HeaderHost: target.Host,
	}
	if cc.HTTPVersion == model.HTTP10 {
		pr.Proto = model.HTTP10
	}
	if cc.Dialect == model.SOAP12 && strings.EqualFold(cc.WebMethod, "GET") {
		pr.Method = "GET"
	}

	if cc.Timeout > 0 {
		pr.ConnectTimeout = cc.Timeout
		pr.ResponseTimeout = cc.Timeout
	} else {
		pr.ConnectTimeout = b.Props.DefaultConnectionTimeout
		pr.ResponseTimeout = b.Props.DefaultSoTimeout
	}
	pr.PoolTimeout = b.Props.ConnectionPoolTimeout

	h := pr.Header
	action := ""
	if cc.UseSOAPAction {
		action = cc.SOAPActionURI
	}
	h.Set(model.HeaderSOAPAction, `"`+action+`"`)

	hasBody := pr.Method != "GET" && msg != nil
	if hasBody {
		if ct := msg.ContentType(); ct != "" {
			h.Set(model.HeaderContentType, ct)
		}
	}

	ua := b.Props.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	h.Set(model.HeaderUserAgent, ua)

	b.registerCredentials(cc, target, store)

	if cc.AcceptGzip {
		h.Add(model.HeaderAcceptEncoding, model.EncodingGzip)
	}
	if cc.GzipRequest && hasBody {
		h.Add(model.HeaderContentEncoding, model.EncodingGzip)
	}

	if msg != nil {
		for _, mh := range msg.MimeHeaders().All() {
			if strings.EqualFold(mh.Name, model.HeaderContentType) || strings.EqualFold(mh.Name, model.HeaderSOAPAction) {
				continue
			}
			if err := validHeader(mh.Name, mh.Value); err != nil {
				return nil, err
			}
			h.Add(mh.Name, mh.Value)
		}
	}

	chunked := true
	for _, rh := range cc.RequestHeaders.All() {
		name, value := strings.TrimSpace(rh.Name), strings.TrimSpace(rh.Value)
		switch {
		case strings.EqualFold(name, model.HeaderExpect) && strings.EqualFold(value, model.Expect100Continue):
			pr.ExpectContinue = true
			continue
		case strings.EqualFold(name, model.HeaderTransferEncodingChunked):
			chunked = truthy(value)
			continue
		case strings.EqualFold(name, "host"):
			// user defined host has higher priority
			if value != "" {
				pr.HeaderHost = value
			}
			continue
		case strings.EqualFold(name, "content-length"), strings.EqualFold(name, "transfer-encoding"):
			continue // framing follows the body
		}
		if err := validHeader(name, value); err != nil {
			return nil, err
		}
		h.Add(name, value)
	}
	if !httpguts.ValidHostHeader(pr.HeaderHost) {
		return nil, fmt.Errorf("request: invalid host header %q", pr.HeaderHost)
	}

	if cc.MaintainSession {
		for _, l := range cookie.Emit(cc) {
			h.Add(l.Name, l.Value)
		}
	}

	if pr.Proto == model.HTTP10 {
		chunked = false
	}
	if hasBody {
		pr.Body = entity.New(msg, chunked, cc.GzipRequest)
	} else {
		pr.ExpectContinue = false
	}
	return pr, nil
}

func (b *Builder) registerCredentials(cc *model.CallContext, target *url.URL, store *auth.Store) {
	user, password := cc.Username, cc.Password
	if user == "" && target.User != nil {
		user = target.User.Username()
		password, _ = target.User.Password()
	}
	if user == "" || store == nil {
		return
	}
	store.Set(auth.NewScope(target.Hostname(), Port(target)), auth.ParseUser(user, password, b.workstation()))
}

func (b *Builder) workstation() string {
	hostname := b.Hostname
	if hostname == nil {
		hostname = os.Hostname
	}
	if name, err := hostname(); err == nil && name != "" {
		return name
	}
	return "localhost"
}

// Port returns the explicit port of u, or the default port of its scheme.
func Port(u *url.URL) int {
	if p, err := strconv.Atoi(u.Port()); err == nil {
		return p
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

func validHeader(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("request: invalid header name %q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("request: invalid value for header %q", name)
	}
	return nil
}
