package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// keyComponents splits a strategy such as "ip_user_route" into its
// components.  Unknown names are ignored; an empty result falls back to
// def.
func keyComponents(strategy string, known map[string]bool, def []string) []string {
	var out []string
	for _, p := range strings.Split(strings.ToLower(strategy), "_") {
		if known[p] {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// requestKey renders the named request components as name:value pairs.
func requestKey(c echo.Context, components []string) []string {
	r := c.Request()
	parts := make([]string, 0, 2*len(components))
	for _, name := range components {
		var v string
		switch name {
		case "ip":
			if v = c.RealIP(); v == "" {
				v = "unknown"
			}
		case "user":
			v = currentUserID(c)
		case "method":
			v = r.Method
		case "route":
			v = c.Path()
		case "path":
			v = r.URL.Path
		case "query":
			v = r.URL.Query().Encode()
		}
		parts = append(parts, name, v)
	}
	return parts
}
