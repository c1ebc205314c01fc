package hub

import (
	"net"
	"net/url"

	"github.com/juju/errors"
)

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// tcp://host:port or unix:///path
func parseURI(s string) (scheme, address string, err error) {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return "", "", err
	}
	address = u.Host
	if u.Scheme == "unix" {
		address = u.Path
	}
	return u.Scheme, address, nil
}

func listen(uri string) (net.Listener, error) {
	scheme, address, err := parseURI(uri)
	if err != nil {
		return nil, errors.Annotate(err, "parse url")
	}
	switch scheme {
	case "tcp", "unix":
		ll, err := net.Listen(scheme, address)
		if err != nil {
			return nil, errors.Annotatef(err, "net.Listen network=%s address=%s", scheme, address)
		}
		return ll, nil
	}
	return nil, errors.Errorf("unsupported listen url=%s", uri)
}
