package soaphttp_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"

	soaphttp "github.com/frankli0324/go-soap-http"
)

func ExampleSender() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		if r.URL.Path != "/services/Quote" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `<Envelope><Body><price>42</price></Body></Envelope>`)
	}))
	defer ts.Close()

	// quotes.example.com resolves to the test server
	_, port, _ := net.SplitHostPort(ts.Listener.Addr().String())
	s := soaphttp.New(nil, soaphttp.WithResolveConfig(&soaphttp.ResolveConfig{
		StaticHosts: map[string]string{"quotes.example.com": "127.0.0.1"},
	}))
	defer s.Close()

	msg := &soaphttp.BytesMessage{
		Data: []byte(`<Envelope><Body><getQuote symbol="ACME"/></Body></Envelope>`),
		Type: "text/xml; charset=utf-8",
	}
	for _, path := range []string{"/services/Quote", "/services/Missing"} {
		cc := &soaphttp.CallContext{
			TargetURL:     "http://quotes.example.com:" + port + path,
			Dialect:       soaphttp.SOAP11,
			UseSOAPAction: true,
			SOAPActionURI: "urn:getQuote",
		}
		resp, err := s.Send(context.Background(), cc, msg)
		var f *soaphttp.Fault
		if errors.As(err, &f) {
			fmt.Println(f.String)
			continue
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		fmt.Println(cc.ResponseStatus, string(b))
	}
	// Output:
	// 200 <Envelope><Body><price>42</price></Body></Envelope>
	// (404) Not Found
}
