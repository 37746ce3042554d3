package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxBody is the largest request body read for parameters.
const maxBody = 1 << 20

// Parameter names accepted for the subject address and for batch lookups.
var (
	addressKeys = []string{"ip", "address", "addr", "ip_address"}
	batchKeys   = []string{"ips", "addresses", "addrs", "ip_addresses"}
	fieldKeys   = []string{"type", "dtype"}
)

// params are the merged request parameters
type params url.Values

// requestParams merges the query string, the form body and a JSON object
// body.  A key set by a later source replaces the earlier values.
func requestParams(c *gin.Context) params {
	p := params{}
	for k, v := range c.Request.URL.Query() {
		p[k] = v
	}

	ct, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		// ErrNotMultipart still leaves PostForm parsed.
		_ = c.Request.ParseMultipartForm(maxBody)
		for k, v := range c.Request.PostForm {
			p[k] = v
		}
	case "application/json":
		for k, v := range jsonParams(c.Request.Body) {
			p[k] = v
		}
	}
	return p
}

func jsonParams(body io.Reader) map[string][]string {
	if body == nil {
		return nil
	}

	var obj map[string]any
	if err := json.NewDecoder(io.LimitReader(body, maxBody)).Decode(&obj); err != nil {
		return nil
	}

	out := make(map[string][]string, len(obj))
	for k, v := range obj {
		switch x := v.(type) {
		case nil:
			out[k] = []string{""}
		case []any:
			vals := make([]string, 0, len(x))
			for _, e := range x {
				vals = append(vals, fmt.Sprint(e))
			}
			out[k] = vals
		default:
			out[k] = []string{fmt.Sprint(x)}
		}
	}
	return out
}

// has reports whether key is present, even with an empty value.
func (p params) has(key string) bool {
	_, ok := p[key]
	return ok
}

// first returns the first non-empty value of the first present key.
func (p params) first(keys ...string) string {
	for _, k := range keys {
		for _, v := range p[k] {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// list returns every address of the first present batch key.  Values may be
// repeated or comma-separated.
func (p params) list(keys ...string) []string {
	for _, k := range keys {
		vals, ok := p[k]
		if !ok {
			continue
		}

		var out []string
		for _, v := range vals {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
