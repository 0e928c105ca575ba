// Package hostspec parses literal connection targets of the form
// [user@]host[:port][=geometry].
package hostspec

import (
	"net/netip"
	"regexp"
	"strings"
)

var (
	bracketed = regexp.MustCompile(`\A(?:(.*?)@)?\[([\w:]*)\](?::(\d+))?(?:=(\d+\D\d+\D\d+\D\d+))?\z`)
	plain     = regexp.MustCompile(`\A(?:(.*?)@)?([\w\.-]*)(?::(\d+))?(?:=(\d+\D\d+\D\d+\D\d+))?\z`)

	userPrefix  = regexp.MustCompile(`\A(?:(.*?)@)`)
	slashPort   = regexp.MustCompile(`(?:/(\d+)$)`)
	colonPort   = regexp.MustCompile(`(?::(\d+?))$`)
	anyGeometry = regexp.MustCompile(`(?:=(.*?)$)`)
)

// HostSpec is an immutable literal host with optional user and port.
// Geometry suffixes are accepted by Parse and dropped.
type HostSpec struct {
	User string
	Host string
	Port string
}

// Parse parses s. The second result is false when no host name can be
// extracted (empty string, "user@", "user@:22", "[]").
func Parse(s string) (HostSpec, bool) {
	if m := bracketed.FindStringSubmatch(s); m != nil {
		if m[2] == "" {
			return HostSpec{}, false
		}
		return HostSpec{User: m[1], Host: m[2], Port: m[3]}, true
	}
	if m := plain.FindStringSubmatch(s); m != nil {
		if m[2] == "" {
			return HostSpec{}, false
		}
		return HostSpec{User: m[1], Host: m[2], Port: m[3]}, true
	}
	return parseLoose(s)
}

// parseLoose handles everything the two anchored patterns reject: bare IPv6
// addresses, host/port, and hostnames with characters outside [\w.-].
func parseLoose(s string) (HostSpec, bool) {
	var spec HostSpec
	rest := s
	if m := userPrefix.FindStringSubmatch(rest); m != nil {
		spec.User = m[1]
		rest = rest[len(m[0]):]
	}
	if rest == "" {
		return HostSpec{}, false
	}
	if loc := anyGeometry.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
		if rest == "" {
			return HostSpec{}, false
		}
	}
	if m := slashPort.FindStringSubmatchIndex(rest); m != nil {
		spec.Port = rest[m[2]:m[3]]
		rest = rest[:m[0]]
		if rest == "" {
			return HostSpec{}, false
		}
	}

	colons := strings.Count(rest, ":")
	switch {
	case colons == 7 || colons == 8 || rest == "::1":
		if colons == 8 {
			if m := colonPort.FindStringSubmatchIndex(rest); m != nil {
				spec.Port = rest[m[2]:m[3]]
				rest = rest[:m[0]]
			}
		}
	case colons > 1 && colons < 8:
		// ambiguous (web::db); taken as-is
	default:
		return HostSpec{}, false
	}
	if rest == "" {
		return HostSpec{}, false
	}
	spec.Host = rest
	return spec, true
}

// MustParse is Parse for tests and constants; it panics on invalid input.
func MustParse(s string) HostSpec {
	h, ok := Parse(s)
	if !ok {
		panic("hostspec: invalid host " + s)
	}
	return h
}

// String renders the spec back in canonical form. IPv6 hosts are bracketed
// when a port is present.
func (h HostSpec) String() string {
	var b strings.Builder
	if h.User != "" {
		b.WriteString(h.User)
		b.WriteByte('@')
	}
	if h.Port != "" && strings.Contains(h.Host, ":") {
		b.WriteByte('[')
		b.WriteString(h.Host)
		b.WriteByte(']')
	} else {
		b.WriteString(h.Host)
	}
	if h.Port != "" {
		b.WriteByte(':')
		b.WriteString(h.Port)
	}
	return b.String()
}

// WithUser returns a copy carrying user. An empty user leaves h unchanged.
func (h HostSpec) WithUser(user string) HostSpec {
	if user == "" {
		return h
	}
	h.User = user
	return h
}

// WithHost returns a copy with the host part replaced.
func (h HostSpec) WithHost(host string) HostSpec {
	h.Host = host
	return h
}

// IsIPLiteral reports whether the host part is already an IPv4 or IPv6 address.
func (h HostSpec) IsIPLiteral() bool {
	_, err := netip.ParseAddr(h.Host)
	return err == nil
}

// SplitUser splits "user@name" into its parts. Names without '@' return an
// empty user.
func SplitUser(token string) (user, name string) {
	if i := strings.Index(token, "@"); i >= 0 {
		return token[:i], token[i+1:]
	}
	return "", token
}
