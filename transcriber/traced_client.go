package transcriber

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"earshot/log"
)

type TracedClient struct {
	client *http.Client

	mu   sync.Mutex
	last *NetworkMetrics
}

func NewTracedClient() *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

type tracer struct {
	metrics                                 *NetworkMetrics
	getConnStart, dnsStart, tcpStart        time.Time
	tlsStart, gotConn, wroteHeaders         time.Time
	wroteRequest, firstByte, requestStarted time.Time
}

func (t *tracer) attach(req *http.Request) *http.Request {
	trace := &httptrace.ClientTrace{
		GetConn: func(_ string) { t.getConnStart = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			t.gotConn = time.Now()
			t.metrics.ConnWait = t.gotConn.Sub(t.getConnStart)
			t.metrics.ConnReused = info.Reused
		},
		DNSStart:          func(_ httptrace.DNSStartInfo) { t.dnsStart = time.Now() },
		DNSDone:           func(_ httptrace.DNSDoneInfo) { t.metrics.DNS = time.Since(t.dnsStart) },
		ConnectStart:      func(_, _ string) { t.tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { t.metrics.TCP = time.Since(t.tcpStart) },
		TLSHandshakeStart: func() { t.tlsStart = time.Now() },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			t.metrics.TLS = time.Since(t.tlsStart)
			t.metrics.TLSProtocol = cs.NegotiatedProtocol
		},
		WroteHeaders: func() {
			t.wroteHeaders = time.Now()
			t.metrics.ReqHeaders = t.wroteHeaders.Sub(t.gotConn)
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			t.wroteRequest = time.Now()
			t.metrics.ReqBody = t.wroteRequest.Sub(t.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			t.firstByte = time.Now()
			t.metrics.TTFB = t.firstByte.Sub(t.wroteRequest)
		},
	}
	t.requestStarted = time.Now()
	return req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
}

func (t *tracer) finish() {
	if !t.firstByte.IsZero() {
		t.metrics.Download = time.Since(t.firstByte)
	}
	t.metrics.Total = time.Since(t.requestStarted)
}

// Do sends req and reads the whole response body, recording connection
// timings along the way.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	t := &tracer{metrics: &NetworkMetrics{}}
	req = t.attach(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	t.finish()
	c.setLast(t.metrics)

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    t.metrics,
	}, nil
}

// Doer adapts the client to SDKs that take an HTTP doer and read the
// response themselves. Timings of the latest request are available from
// LastMetrics; the body download is not included.
func (c *TracedClient) Doer() interface {
	Do(*http.Request) (*http.Response, error)
} {
	return doerFunc(func(req *http.Request) (*http.Response, error) {
		t := &tracer{metrics: &NetworkMetrics{}}
		resp, err := c.client.Do(t.attach(req))
		t.finish()
		c.setLast(t.metrics)
		return resp, err
	})
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func (c *TracedClient) setLast(m *NetworkMetrics) {
	c.mu.Lock()
	c.last = m
	c.mu.Unlock()
}

func (c *TracedClient) LastMetrics() *NetworkMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// WarmConnection sends a HEAD request to url so later requests reuse the
// pooled connection. It returns the TLS handshake time, zero if the
// connection was already open or the request failed.
func (c *TracedClient) WarmConnection(url string) time.Duration {
	var tlsStart time.Time
	var tlsDuration time.Duration

	trace := &httptrace.ClientTrace{
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(_ tls.ConnectionState, _ error) { tlsDuration = time.Since(tlsStart) },
	}

	req, err := http.NewRequest("HEAD", url, nil)
	if err != nil {
		return 0
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return tlsDuration
}

func warm(c *TracedClient, name, url string) {
	if d := c.WarmConnection(url); d > 0 {
		log.Infof("%s: connection warmed (tls %s)", name, d.Round(time.Millisecond))
	}
}
