// Package soaphttp sends envelope RPC calls over pooled HTTP connections.
//
// A Sender owns its connection pool; build one with New, share it between
// goroutines and Close it when done. Each call gets its own CallContext.
package soaphttp

import (
	"github.com/frankli0324/go-soap-http/internal/config"
	"github.com/frankli0324/go-soap-http/internal/fault"
	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
	"github.com/frankli0324/go-soap-http/internal/obs"
	"github.com/frankli0324/go-soap-http/internal/sender"
)

type Sender = sender.Sender
type Option = sender.Option
type Stats = netpool.Stats

type CallContext = model.CallContext
type Dialect = model.Dialect
type CookieSlot = model.CookieSlot
type OutgoingMessage = model.OutgoingMessage
type BytesMessage = model.BytesMessage
type FuncMessage = model.FuncMessage
type Message = model.Message
type MimeHeaders = model.MimeHeaders

type Fault = fault.Fault

type Config = config.Config
type ClientProperties = config.ClientProperties
type ProxyProperties = config.ProxyProperties

type Logger = obs.Logger
type StdLogger = obs.StdLogger

const (
	SOAP11 = model.SOAP11
	SOAP12 = model.SOAP12

	HTTP10 = model.HTTP10
	HTTP11 = model.HTTP11

	HeaderExpect                  = model.HeaderExpect
	HeaderTransferEncodingChunked = model.HeaderTransferEncodingChunked
)

var (
	ErrTransport           = fault.ErrTransport
	ErrProtocol            = fault.ErrProtocol
	ErrUnsupportedEncoding = fault.ErrUnsupportedEncoding
	ErrPoolTimeout         = fault.ErrPoolTimeout
	ErrPoolClosed          = fault.ErrPoolClosed
)

var (
	New               = sender.New
	WithLogger        = sender.WithLogger
	WithResolveConfig = sender.WithResolveConfig
	WithTLSConfig     = sender.WithTLSConfig
	WithMiddleware    = sender.WithMiddleware
	WithHostname      = sender.WithHostname

	NewMimeHeaders          = model.NewMimeHeaders
	DefaultConfig           = config.Default
	DefaultClientProperties = config.DefaultClientProperties
	ConfigFromEnvironment   = config.FromEnvironment
)
