// Package web contains the HTML pages of the service.
package web

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Template names
const (
	IndexTemplate = "index.html"
	APITemplate   = "api.html"
)

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// HostConfig is the static host configuration of the HTML pages
type HostConfig struct {
	MainHost    string
	V4Subdomain string
	V6Subdomain string
	V4Host      string
	V6Host      string

	// ForceMainHost always uses V4Host and V6Host instead of deriving the
	// hosts from the request.
	ForceMainHost bool
}

// Hosts are the host names a page links to
type Hosts struct {
	Host     string
	V4Host   string
	V6Host   string
	MainHost string
}

// HostsFor returns the hosts for a page requested on host.  A leading v4 or v6
// subdomain is removed from host before the family subdomains are added back.
func (c HostConfig) HostsFor(host string) Hosts {
	h := Hosts{Host: host, MainHost: c.MainHost}

	if c.ForceMainHost {
		h.V4Host, h.V6Host = c.V4Host, c.V6Host
		if h.V4Host == "" {
			h.V4Host = c.V4Subdomain + "." + c.MainHost
		}
		if h.V6Host == "" {
			h.V6Host = c.V6Subdomain + "." + c.MainHost
		}
		return h
	}

	h.Host = strings.TrimPrefix(h.Host, c.V4Subdomain+".")
	h.Host = strings.TrimPrefix(h.Host, c.V6Subdomain+".")
	h.V4Host = c.V4Subdomain + "." + h.Host
	h.V6Host = c.V6Subdomain + "." + h.Host
	return h
}
