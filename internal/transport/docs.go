// package transport runs single exchanges on leased connections: HTTP/1.x
// message syntax (RFC9112) written and parsed by hand, HTTP/2 (RFC9113)
// through golang.org/x/net/http2, and CONNECT for proxy tunnels.
//
// Semantics are left to the caller: authentication rounds, retries and
// response classification all happen above this package. Types from
// net/http ([net/http.Header], [net/url.URL]) are reused for the parts
// that carry no wire syntax.

package transport
