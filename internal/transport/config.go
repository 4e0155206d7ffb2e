// Package transport holds the shared HTTP transport settings for upstream
// LLM calls. Values are tuned for long-lived streaming responses over
// HTTP/2.
package transport

import "time"

// Config is the single source of truth for transport tuning; both the
// upstream client and the resilience layer read from here.
var Config = struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ResponseHeaderTimeout time.Duration
	DialTimeout           time.Duration
	KeepAlive             time.Duration

	H2ReadIdleTimeout            time.Duration
	H2PingTimeout                time.Duration
	H2StrictMaxConcurrentStreams bool
	H2AllowHTTP                  bool
}{
	MaxIdleConns:        1000,
	MaxIdleConnsPerHost: 100,
	// 0 = unlimited; HTTP/2 multiplexes over few connections anyway.
	MaxConnsPerHost: 0,

	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	// Large-context requests can sit in the upstream queue for minutes
	// before the first header arrives.
	ResponseHeaderTimeout: 600 * time.Second,
	DialTimeout:           30 * time.Second,
	KeepAlive:             30 * time.Second,

	H2ReadIdleTimeout:            30 * time.Second,
	H2PingTimeout:                15 * time.Second,
	H2StrictMaxConcurrentStreams: false,
	H2AllowHTTP:                  false,
}
