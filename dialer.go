package soaphttp

import (
	"github.com/frankli0324/go-soap-http/internal/dialer"
)

type Dialer = dialer.Dialer
type ResolveConfig = dialer.ResolveConfig

var ErrProxyAuth = dialer.ErrProxyAuth
