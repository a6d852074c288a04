package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Client wraps a tuned HTTP client for the streaming completion call. The
// overall client timeout is deliberately unset: a generation stream stays
// open far longer than any sane request timeout. The configured timeout
// bounds dialing and waiting for response headers instead.
type Client struct {
	http *http.Client
	url  string
}

func NewClient(completionURL string, timeout time.Duration) *Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &Client{
		http: &http.Client{Transport: base},
		url:  completionURL,
	}
}
