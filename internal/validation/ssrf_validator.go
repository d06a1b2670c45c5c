// Package validation guards outbound source URLs (RTSP/HTTP streams,
// extractor targets, headless-render targets) against SSRF before a capture
// subprocess is spawned against them.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Finding is one blocking or advisory result from validating a URL.
type Finding struct {
	Code     string
	Message  string
	Field    string
	Advisory bool // true for warnings that do not block the source from starting
}

const (
	CodeInvalidURL            = "invalid_url"
	CodeInvalidScheme         = "invalid_scheme"
	CodeUserInfoBlocked       = "userinfo_blocked"
	CodeIPLiteralBlocked      = "ip_literal_blocked"
	CodeLoopbackBlocked       = "loopback_blocked"
	CodeLinkLocalBlocked      = "link_local_blocked"
	CodeMulticastBlocked      = "multicast_blocked"
	CodeMetadataIPBlocked     = "metadata_ip_blocked"
	CodePrivateAddressBlocked = "private_address_blocked"
	CodeUniqueLocalBlocked    = "unique_local_blocked"
	CodeIPv4MappedBlocked     = "ipv4_mapped_blocked"
	CodeNAT64Blocked          = "nat64_blocked"
	CodeDocumentationBlocked  = "documentation_ip_blocked"
	CodeLocalhostBlocked      = "localhost_blocked"
	CodeLocalLikeHostname     = "local_like_hostname"
)

// SSRFValidator checks source URLs for RtspOrHttpStream, ExtractorUrl, and
// HeadlessRender sources before the corresponding subprocess is spawned.
// allowedPrivateCIDRs lets an operator explicitly opt a private range (e.g. a
// camera on the LAN) back into use.
type SSRFValidator struct {
	allowedPrivateRanges []*net.IPNet
}

// NewSSRFValidator builds a validator that otherwise blocks private, loopback,
// link-local, multicast, and cloud-metadata targets.
func NewSSRFValidator(allowedPrivateCIDRs []string) *SSRFValidator {
	v := &SSRFValidator{}
	for _, cidrStr := range allowedPrivateCIDRs {
		if _, ipnet, err := net.ParseCIDR(cidrStr); err == nil {
			v.allowedPrivateRanges = append(v.allowedPrivateRanges, ipnet)
		}
	}
	return v
}

// Validate checks rawURL and returns every finding. An empty (non-advisory)
// result set means the URL is safe to hand to a subprocess. Only http, https
// and rtsp schemes are accepted; callers with non-URL sources (LocalFile) should skip
// this check entirely.
func (v *SSRFValidator) Validate(rawURL string) []Finding {
	var findings []Finding

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return []Finding{{Code: CodeInvalidURL, Message: fmt.Sprintf("invalid URL: %v", err), Field: "url"}}
	}

	findings = append(findings, v.checkScheme(parsed)...)
	findings = append(findings, v.checkUserInfo(parsed)...)
	findings = append(findings, v.checkHost(parsed)...)

	return findings
}

// Blocked reports whether findings contains at least one non-advisory entry.
func Blocked(findings []Finding) bool {
	for _, f := range findings {
		if !f.Advisory {
			return true
		}
	}
	return false
}

func (v *SSRFValidator) checkScheme(parsed *url.URL) []Finding {
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" && scheme != "rtsp" {
		return []Finding{{Code: CodeInvalidScheme, Message: "only http, https, and rtsp schemes are allowed", Field: "url"}}
	}
	return nil
}

func (v *SSRFValidator) checkUserInfo(parsed *url.URL) []Finding {
	if parsed.User != nil {
		return []Finding{{Code: CodeUserInfoBlocked, Message: "URLs with embedded credentials (user:pass@host) are not allowed", Field: "url"}}
	}
	return nil
}

func (v *SSRFValidator) checkHost(parsed *url.URL) []Finding {
	host := parsed.Hostname()
	if host == "" {
		return []Finding{{Code: CodeInvalidURL, Message: "URL must have a host", Field: "url"}}
	}

	if ip := net.ParseIP(host); ip != nil {
		return v.checkIP(ip)
	}
	return v.checkHostname(host)
}

func (v *SSRFValidator) checkIP(ip net.IP) []Finding {
	if v.isPrivateAllowed(ip) {
		return nil
	}

	var findings []Finding
	findings = append(findings, Finding{Code: CodeIPLiteralBlocked, Message: "IP literal targets are not allowed by default", Field: "url"})

	if ip4 := ip.To4(); ip4 != nil {
		findings = append(findings, v.checkIPv4(ip4)...)
	} else {
		findings = append(findings, v.checkIPv6(ip)...)
	}
	return findings
}

func (v *SSRFValidator) checkIPv4(ip net.IP) []Finding {
	var findings []Finding

	blocked := []struct {
		cidr, code, msg string
	}{
		{"127.0.0.0/8", CodeLoopbackBlocked, "loopback range (127.0.0.0/8) is blocked"},
		{"169.254.0.0/16", CodeLinkLocalBlocked, "link-local range (169.254.0.0/16) is blocked"},
		{"169.254.169.254/32", CodeMetadataIPBlocked, "cloud metadata IP (169.254.169.254) is blocked"},
		{"100.100.100.200/32", CodeMetadataIPBlocked, "Alibaba Cloud metadata IP is blocked"},
		{"0.0.0.0/8", CodePrivateAddressBlocked, "this-network range (0.0.0.0/8) is blocked"},
	}
	for _, b := range blocked {
		if _, cidr, err := net.ParseCIDR(b.cidr); err == nil && cidr.Contains(ip) {
			findings = append(findings, Finding{Code: b.code, Message: b.msg, Field: "url"})
		}
	}

	for _, cidrStr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		if _, cidr, err := net.ParseCIDR(cidrStr); err == nil && cidr.Contains(ip) && !v.isPrivateAllowed(ip) {
			findings = append(findings, Finding{
				Code:    CodePrivateAddressBlocked,
				Message: "RFC 1918 private address is blocked; add its CIDR to allowed_private_networks to permit it",
				Field:   "url",
			})
		}
	}
	return findings
}

func (v *SSRFValidator) checkIPv6(ip net.IP) []Finding {
	var findings []Finding
	blocked := []struct {
		cidr, code, msg string
	}{
		{"::1/128", CodeLoopbackBlocked, "IPv6 loopback (::1) is blocked"},
		{"::/128", CodePrivateAddressBlocked, "IPv6 unspecified address (::) is blocked"},
		{"fc00::/7", CodeUniqueLocalBlocked, "IPv6 unique local addresses (fc00::/7) are blocked"},
		{"fe80::/10", CodeLinkLocalBlocked, "IPv6 link-local addresses (fe80::/10) are blocked"},
		{"ff00::/8", CodeMulticastBlocked, "IPv6 multicast addresses (ff00::/8) are blocked"},
		{"::ffff:0:0/96", CodeIPv4MappedBlocked, "IPv4-mapped IPv6 addresses are blocked"},
		{"64:ff9b::/96", CodeNAT64Blocked, "NAT64 addresses (64:ff9b::/96) are blocked"},
		{"2001:db8::/32", CodeDocumentationBlocked, "documentation addresses (2001:db8::/32) are blocked"},
	}
	for _, b := range blocked {
		if _, cidr, err := net.ParseCIDR(b.cidr); err == nil && cidr.Contains(ip) {
			findings = append(findings, Finding{Code: b.code, Message: b.msg, Field: "url"})
		}
	}
	if v4 := ip.To4(); v4 != nil {
		findings = append(findings, v.checkIPv4(v4)...)
	}
	return findings
}

func (v *SSRFValidator) checkHostname(host string) []Finding {
	lower := strings.ToLower(host)

	for _, pattern := range []string{"localhost", "localhost.localdomain"} {
		if lower == pattern || strings.HasSuffix(lower, "."+pattern) {
			if v.isPrivateAllowed(net.ParseIP("127.0.0.1")) {
				return nil
			}
			return []Finding{{Code: CodeLocalhostBlocked, Message: "localhost hostnames are blocked", Field: "url"}}
		}
	}

	if strings.HasSuffix(lower, ".internal") || strings.HasSuffix(lower, ".local") {
		return []Finding{{Code: CodeLocalLikeHostname, Message: "hostname looks like an internal/local address", Field: "url", Advisory: true}}
	}
	return nil
}

func (v *SSRFValidator) isPrivateAllowed(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, r := range v.allowedPrivateRanges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

// RedirectPolicy controls how many hops the extractor subprocess's resolved
// direct-play URL may have followed, and whether cross-origin redirects are
// permitted.
type RedirectPolicy struct {
	Mode         string // "deny", "same_origin", "allowlist_only"
	MaxRedirects int
}

// DefaultRedirectPolicy denies all redirects, matching the media processor's
// single-hop invocation.
func DefaultRedirectPolicy() RedirectPolicy {
	return RedirectPolicy{Mode: "deny", MaxRedirects: 0}
}

// ValidateRedirectTarget re-runs the full URL check against a redirect
// target resolved by the extractor subprocess, so a direct-play URL that
// resolves to an internal address is caught before it is fed to the media
// processor.
func (v *SSRFValidator) ValidateRedirectTarget(targetURL string) []Finding {
	return v.Validate(targetURL)
}
