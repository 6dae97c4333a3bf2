package soaphttp

import (
	"github.com/frankli0324/go-soap-http/internal"
	"github.com/frankli0324/go-soap-http/internal/auth"
	"github.com/frankli0324/go-soap-http/internal/model"
)

// The pooled client under a Sender, for callers that build requests
// themselves.
type Client = internal.Client
type Middleware = internal.Middleware
type Handler = internal.Handler
type PreparedRequest = model.PreparedRequest
type Response = model.Response

type Credentials = auth.Credentials
type CredentialStore = auth.Store

var (
	NewClient          = internal.NewClient
	NewCredentialStore = auth.NewStore
)
