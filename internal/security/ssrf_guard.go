// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuard は設定で与えられた外部送信先（Webhook等）へのリクエストを保護する。
// 送信先URLの静的検証と、接続時にIPアドレスを検証するHTTPクライアントを提供する。
type OutboundGuard interface {
	// ValidateURL は送信先URLを静的に検証する。
	ValidateURL(rawURL string) error
	// NewClient はプライベートIP等への接続を拒否するHTTPクライアントを生成する。
	NewClient(timeout time.Duration) *http.Client
}

// allowedSchemes は外部送信で許可するURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は送信先として拒否するネットワーク範囲。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドメタデータIPを含む
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// ssrfGuard はOutboundGuardの実装。
type ssrfGuard struct{}

// NewSSRFGuard はOutboundGuardの新しいインスタンスを生成する。
func NewSSRFGuard() OutboundGuard {
	return ssrfGuard{}
}

// NewClient はsafeurlでラップしたHTTPクライアントを生成する。
// DNS解決後のIPアドレスをDialerで検証するため、DNS再バインディングにも対応する。
func (ssrfGuard) NewClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム、ホスト、IPアドレスを静的に検証する。
func (ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	allowed := false
	for _, s := range allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip.String())
			}
		}
	}
	return nil
}
