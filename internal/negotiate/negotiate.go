// Package negotiate picks the representation of a response from the explicit
// format a client asked for and its Accept header.
package negotiate

import (
	"strings"

	"github.com/munnerz/goautoneg"
)

// Format is a response representation
type Format string

// Formats
const (
	JSON Format = "json"
	Text Format = "text"
	HTML Format = "html"
	YAML Format = "yaml"

	// Any means the client expressed no usable preference.
	Any Format = "any"
)

// String implements the fmt.Stringer interface for Format.
func (f Format) String() string { return string(f) }

// ContentType returns the MIME type a response in f is sent with.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json; charset=utf-8"
	case Text:
		return "text/plain; charset=utf-8"
	case YAML:
		return "text/yaml; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// category is one format and the lowercase names that select it.
type category struct {
	format  Format
	aliases []string
}

// categories are checked in order; the first list containing a name wins.
var categories = []category{{
	format: JSON,
	aliases: []string{
		"json", "application/json", "application/x-json", "application/js", "js", "api",
		"text/json", "text/x-json",
	},
}, {
	format: Text,
	aliases: []string{
		"flat", "txt", "plain", "x-plain", "text", "text/*", "text/plain", "text/x-plain",
		"text/plaintext", "plaintext", "plain-text", "text/plain-text", "application/plain",
		"application/x-plain", "application/plaintext", "application/plain-text",
		"application/text",
	},
}, {
	format: HTML,
	aliases: []string{
		"htm", "html", "text/html", "text/x-html", "text/xhtml", "text/xhtml+xml",
		"application/html", "application/x-html", "application/xhtml", "application/xhtml+xml",
		"web", "page", "webpage",
	},
}, {
	format: YAML,
	aliases: []string{
		"yml", "yaml", "x-yml", "x-yaml", "text/yaml", "text/vnd.yaml", "text/yml",
		"application/yaml", "application/yml", "text/x-yaml", "text/x-yml",
		"application/vnd.yaml", "application/x-yaml", "application/x-yml",
	},
}}

// Aliases returns the names selecting f.
func Aliases(f Format) []string {
	for _, c := range categories {
		if c.format == f {
			return append([]string(nil), c.aliases...)
		}
	}
	return nil
}

// Lookup returns the format the name selects, matched case-insensitively.
func Lookup(name string) (f Format, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}

	for _, c := range categories {
		for _, a := range c.aliases {
			if a == name {
				return c.format, true
			}
		}
	}
	return "", false
}

// Decider decides response formats
type Decider struct {
	// APIOnly makes every response JSON.
	APIOnly bool
}

// Decide returns the format of a response.  explicit is the format named by
// the request itself (a "format" parameter or URL suffix) and takes priority
// over accept.  Accept entries are tried in preference order and any type
// containing "html" selects HTML.
func (d Decider) Decide(accept, explicit string) Format {
	if d.APIOnly {
		return JSON
	}

	if f, ok := Lookup(explicit); ok {
		return f
	}

	if strings.TrimSpace(accept) == "" {
		accept = "*/*"
	}

	for _, a := range goautoneg.ParseAccept(accept) {
		mt := a.Type + "/" + a.SubType
		if strings.Contains(mt, "html") {
			return HTML
		}
		if f, ok := Lookup(mt); ok {
			return f
		}
	}
	return Any
}
