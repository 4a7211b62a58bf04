package util

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// ProxyConfig holds explicit proxy settings. Empty fields fall back to the
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY environment variables.
type ProxyConfig struct {
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// NewProxyFunc creates a proxy function for http.Transport
func NewProxyFunc(cfg ProxyConfig) func(*http.Request) (*url.URL, error) {
	env := httpproxy.FromEnvironment()
	if cfg.HTTPProxy != "" {
		env.HTTPProxy = cfg.HTTPProxy
	}
	if cfg.HTTPSProxy != "" {
		env.HTTPSProxy = cfg.HTTPSProxy
	}
	if cfg.NoProxy != "" {
		env.NoProxy = cfg.NoProxy
	}

	proxyFunc := env.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
}

// NewHTTPClient builds a client with the given timeout and proxy settings
func NewHTTPClient(timeout time.Duration, proxy ProxyConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(proxy)

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
