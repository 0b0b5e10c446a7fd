package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	v3 "github.com/pin/tftp/v3"
)

// Response is an open download stream
type Response struct {
	Body io.ReadCloser
	Size int64 // <= 0 when unknown
}

// Getter opens the source of a Descriptor
type Getter interface {
	Open(ctx context.Context, d Descriptor) (*Response, error)
}

// Provider is a getter and the URL schemes it handles
type Provider struct {
	Schemes []string
	Getter  Getter
}

// Provides returns true if the given scheme is supported by this Provider.
func (p Provider) Provides(scheme string) bool {
	return slices.Contains(p.Schemes, scheme)
}

// Providers is a collection of Provider objects.
type Providers []Provider

// ByScheme returns the Getter that handles the given scheme.
func (p Providers) ByScheme(scheme string) (Getter, error) {
	scheme = strings.ToLower(scheme)
	for _, pp := range p {
		if pp.Provides(scheme) {
			return pp.Getter, nil
		}
	}
	return nil, fmt.Errorf("scheme %q not supported", scheme)
}

// Schemes lists every scheme handled by p
func (p Providers) Schemes() []string {
	var out []string
	for _, pp := range p {
		out = append(out, pp.Schemes...)
	}
	return out
}

// ForURL picks the getter for raw's scheme
func (p Providers) ForURL(raw string) (Getter, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return p.ByScheme(u.Scheme)
}

// DefaultProviders handles http, https and tftp. A nil client gets one
// without a timeout.
func DefaultProviders(userAgent string, client *http.Client) Providers {
	return Providers{
		{Schemes: []string{"http", "https"}, Getter: NewHTTPGetter(userAgent, client)},
		{Schemes: []string{"tftp"}, Getter: &TFTPGetter{Timeout: 5 * time.Second, Retries: 5}},
	}
}

// HTTPGetter fetches http and https sources
type HTTPGetter struct {
	client    *http.Client
	userAgent string
}

func NewHTTPGetter(userAgent string, client *http.Client) *HTTPGetter {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGetter{client: client, userAgent: userAgent}
}

// Open sends the GET request. Descriptor headers override the user agent.
func (g *HTTPGetter) Open(ctx context.Context, d Descriptor) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, err
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}
	return &Response{Body: resp.Body, Size: resp.ContentLength}, nil
}

// TFTPGetter fetches tftp://host[:port]/file sources in octet mode
type TFTPGetter struct {
	Timeout time.Duration
	Retries int
}

// Open starts the read request and streams the incoming blocks through a
// pipe. Closing the body aborts the transfer.
func (g *TFTPGetter) Open(ctx context.Context, d Descriptor) (*Response, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, err
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "69")
	}

	c, err := v3.NewClient(addr)
	if err != nil {
		return nil, err
	}
	if g.Timeout > 0 {
		c.SetTimeout(g.Timeout)
	}
	if g.Retries > 0 {
		c.SetRetries(g.Retries)
	}
	c.RequestTSize(true)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wt, err := c.Receive(strings.TrimPrefix(u.Path, "/"), "octet")
	if err != nil {
		return nil, err
	}

	var size int64
	if it, ok := wt.(v3.IncomingTransfer); ok {
		if n, ok := it.Size(); ok {
			size = n
		}
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := wt.WriteTo(pw)
		pw.CloseWithError(err)
	}()
	return &Response{Body: pr, Size: size}, nil
}
