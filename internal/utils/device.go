package utils

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/mssola/useragent"
)

// mobileGaps covers clients useragent does not flag: iPad Safari sends
// no Mobile token and Opera Mini reports a J2ME platform.
var mobileGaps = regexp.MustCompile(`(?i)iPad|iPod|Opera Mini`)

// IsMobileUserAgent reports whether a client is a phone or tablet.
// chMobile is the raw Sec-CH-UA-Mobile header value ("?1" on mobile).
func IsMobileUserAgent(ua, chMobile string) bool {
	if strings.TrimSpace(chMobile) == "?1" {
		return true
	}
	if ua == "" {
		return false
	}
	if useragent.New(ua).Mobile() {
		return true
	}
	return mobileGaps.MatchString(ua)
}

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// IsSecureOrigin reports whether camera access is allowed for a page
// served from origin: HTTPS, or plain HTTP on a loopback host.
func IsSecureOrigin(origin *url.URL) bool {
	if origin == nil {
		return false
	}
	if strings.EqualFold(origin.Scheme, "https") {
		return true
	}
	host := strings.ToLower(origin.Hostname())
	if loopbackHosts[host] {
		return true
	}
	return false
}

// OriginFromRequestParts rebuilds a page origin from proxy-aware request
// parts. forwardedProto wins over the TLS flag when set.
func OriginFromRequestParts(host string, tls bool, forwardedProto string) *url.URL {
	scheme := "http"
	if tls {
		scheme = "https"
	}
	if p := strings.ToLower(strings.TrimSpace(strings.Split(forwardedProto, ",")[0])); p == "http" || p == "https" {
		scheme = p
	}
	if h, _, err := net.SplitHostPort(host); err == nil && h == "" {
		host = "localhost" + host
	}
	return &url.URL{Scheme: scheme, Host: host}
}

// PageOrigin prefers the Origin header the browser sent and falls back to
// the request parts when it is missing or opaque ("null").
func PageOrigin(originHeader, host string, tls bool, forwardedProto string) *url.URL {
	if o := strings.TrimSpace(originHeader); o != "" && o != "null" {
		if u, err := url.Parse(o); err == nil && u.Scheme != "" && u.Host != "" {
			return &url.URL{Scheme: strings.ToLower(u.Scheme), Host: u.Host}
		}
	}
	return OriginFromRequestParts(host, tls, forwardedProto)
}
