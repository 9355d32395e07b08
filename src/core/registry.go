package core

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var constructors = map[string]func() OddsParser{
	"sisal":       GetSisalParser,
	"lottomatica": GetLottomaticaParser,
}

// AvailableParsers returns the registered parser names, sorted.
func AvailableParsers() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetParser returns the parser registered under name.
func GetParser(name string) (OddsParser, error) {
	ctor, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (available: %v)", name, AvailableParsers())
	}

	return ctor(), nil
}

// ParserForURL picks a parser by the host of pageURL.
func ParserForURL(pageURL string) (OddsParser, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	host := strings.ToLower(u.Hostname())

	for _, name := range AvailableParsers() {
		p := constructors[name]()
		for _, h := range p.Hosts() {
			if host == h || strings.HasSuffix(host, "."+h) {
				return p, nil
			}
		}
	}

	return nil, fmt.Errorf("no parser for host %q (available: %v)", host, AvailableParsers())
}
