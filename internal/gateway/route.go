package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// Route sends every path below Prefix to Service. StripPrefix removes the
// prefix for services mounted at the root.
type Route struct {
	Prefix      string
	Service     string
	StripPrefix bool
}

func DefaultRoutes() []Route {
	return []Route{
		{Prefix: "/kunde", Service: "kunde"},
		{Prefix: "/bestellung", Service: "bestellung"},
		{Prefix: "/auth", Service: "kunde"},
	}
}

// ParseRoutes reads "prefix=service[:strip],...". An empty string yields
// the default table.
func ParseRoutes(raw string) ([]Route, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultRoutes(), nil
	}

	var routes []Route
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, target, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("route %q: expected prefix=service", entry)
		}
		service, opt, _ := strings.Cut(target, ":")
		prefix, service = strings.TrimSpace(prefix), strings.TrimSpace(service)
		if !strings.HasPrefix(prefix, "/") || service == "" {
			return nil, fmt.Errorf("route %q: prefix must start with / and service must be set", entry)
		}
		if opt != "" && opt != "strip" {
			return nil, fmt.Errorf("route %q: unknown option %q", entry, opt)
		}
		routes = append(routes, Route{
			Prefix:      strings.TrimSuffix(prefix, "/"),
			Service:     service,
			StripPrefix: opt == "strip",
		})
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no routes in %q", raw)
	}
	return routes, nil
}

// table keeps routes ordered longest prefix first.
type table []Route

func newTable(routes []Route) table {
	t := append(table(nil), routes...)
	sort.SliceStable(t, func(i, j int) bool { return len(t[i].Prefix) > len(t[j].Prefix) })
	return t
}

// match returns the route for the escaped path and the escaped path to
// forward.
func (t table) match(path string) (Route, string, bool) {
	for _, rt := range t {
		if rt.Prefix == "" {
			return rt, path, true
		}
		if path != rt.Prefix && !strings.HasPrefix(path, rt.Prefix+"/") {
			continue
		}
		if !rt.StripPrefix {
			return rt, path, true
		}
		rest := strings.TrimPrefix(path, rt.Prefix)
		if rest == "" {
			rest = "/"
		}
		return rt, rest, true
	}
	return Route{}, "", false
}
