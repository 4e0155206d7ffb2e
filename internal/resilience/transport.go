// Package resilience provides the HTTP transport, retry, and circuit
// breaker layer for upstream LLM calls.
package resilience

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"

	transportcfg "github.com/bridgekit/llm-bridge/internal/transport"
)

var (
	sharedTransport     *http.Transport
	sharedTransportOnce sync.Once
)

// SharedTransport returns the singleton transport for direct (non-proxy)
// upstream requests, with HTTP/2 and connection pooling configured.
func SharedTransport() *http.Transport {
	sharedTransportOnce.Do(func() {
		sharedTransport = newBaseTransport()
		sharedTransport.DialContext = newDialer().DialContext
	})
	return sharedTransport
}

func newDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   transportcfg.Config.DialTimeout,
		KeepAlive: transportcfg.Config.KeepAlive,
	}
}

// newBaseTransport builds a transport from the shared tuning. DialContext
// is left for the caller to set.
func newBaseTransport() *http.Transport {
	cfg := transportcfg.Config
	t := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,

		ForceAttemptHTTP2: true,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		WriteBufferSize: 64 * 1024,
		ReadBufferSize:  64 * 1024,
	}
	configureHTTP2(t)
	return t
}

func configureHTTP2(transport *http.Transport) {
	h2Transport, err := http2.ConfigureTransports(transport)
	if err != nil {
		return
	}
	cfg := transportcfg.Config
	h2Transport.ReadIdleTimeout = cfg.H2ReadIdleTimeout
	h2Transport.PingTimeout = cfg.H2PingTimeout
	h2Transport.StrictMaxConcurrentStreams = cfg.H2StrictMaxConcurrentStreams
	h2Transport.AllowHTTP = cfg.H2AllowHTTP
}

// ProxyTransport builds a transport routed through an HTTP/HTTPS proxy.
func ProxyTransport(proxyURL *url.URL) *http.Transport {
	t := newBaseTransport()
	t.Proxy = http.ProxyURL(proxyURL)
	t.DialContext = newDialer().DialContext
	return t
}

// SOCKS5Transport builds a transport dialing through a SOCKS5 proxy.
func SOCKS5Transport(dialFunc func(network, addr string) (net.Conn, error)) *http.Transport {
	t := newBaseTransport()
	t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialFunc(network, addr)
	}
	return t
}

// TransportCache caches transports by proxy URL so per-credential proxies
// do not multiply connection pools.
type TransportCache struct {
	mu    sync.RWMutex
	cache map[string]*http.Transport
}

func NewTransportCache() *TransportCache {
	return &TransportCache{cache: make(map[string]*http.Transport)}
}

// GetOrCreate returns the transport for proxyURLStr, creating and caching
// it on first use. An empty string returns the shared transport.
func (c *TransportCache) GetOrCreate(proxyURLStr string) (*http.Transport, error) {
	if proxyURLStr == "" {
		return SharedTransport(), nil
	}

	c.mu.RLock()
	if t := c.cache[proxyURLStr]; t != nil {
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	proxyURL, err := url.Parse(proxyURLStr)
	if err != nil {
		return nil, err
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "socks5":
		var proxyAuth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			proxyAuth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
		if err != nil {
			return nil, err
		}
		transport = SOCKS5Transport(dialer.Dial)
	case "http", "https":
		transport = ProxyTransport(proxyURL)
	default:
		return SharedTransport(), nil
	}

	c.mu.Lock()
	c.cache[proxyURLStr] = transport
	c.mu.Unlock()
	return transport, nil
}

// NewHTTPClient builds a client with the transport for proxyURL. A zero
// timeout leaves the client unbounded, required for streaming responses.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport, err := globalTransportCache().GetOrCreate(proxyURL)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

var (
	globalCache     *TransportCache
	globalCacheOnce sync.Once
)

func globalTransportCache() *TransportCache {
	globalCacheOnce.Do(func() {
		globalCache = NewTransportCache()
	})
	return globalCache
}
