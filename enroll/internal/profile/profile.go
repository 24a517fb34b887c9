// Package profile turns an enrollment result into a wg-quick style
// tunnel configuration.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"text/template"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"teams-enroll/enroll/internal/enrollment"
	"teams-enroll/enroll/internal/wireguard"
)

const (
	DefaultMTU          = 1280
	DefaultEndpointPort = 2408
)

var DefaultDNS = []string{"1.1.1.1", "2606:4700:4700::1111"}

var defaultAllowedIPs = []string{"0.0.0.0/0", "::/0"}

type Options struct {
	DNS []string
	MTU int
}

type Profile struct {
	PrivateKey    string
	Addresses     []string
	DNS           []string
	MTU           int
	PeerPublicKey string
	AllowedIPs    []string
	Endpoint      string
}

var tmpl = template.Must(template.New("profile").Funcs(template.FuncMap{"join": strings.Join}).Parse(`[Interface]
PrivateKey = {{ .PrivateKey }}
{{- range .Addresses }}
Address = {{ . }}
{{- end }}
{{- if .DNS }}
DNS = {{ join .DNS ", " }}
{{- end }}
{{- if gt .MTU 0 }}
MTU = {{ .MTU }}
{{- end }}

[Peer]
PublicKey = {{ .PeerPublicKey }}
{{- range .AllowedIPs }}
AllowedIPs = {{ . }}
{{- end }}
Endpoint = {{ .Endpoint }}
`))

// New builds the profile for priv from the first peer of res.
func New(priv wgtypes.Key, res enrollment.RegistrationResult, opts Options) (Profile, error) {
	if err := enrollment.Validate(res); err != nil {
		return Profile{}, err
	}
	peer := res.Config.Peers[0]
	peerKey, err := wgtypes.ParseKey(peer.PublicKey)
	if err != nil {
		return Profile{}, fmt.Errorf("parse peer public key: %w", err)
	}

	endpoint, err := endpointFor(peer.Endpoint)
	if err != nil {
		return Profile{}, err
	}

	var addrs []string
	if v4 := res.Config.Interface.Addresses.V4; v4 != "" {
		addrs = append(addrs, v4+"/32")
	}
	if v6 := res.Config.Interface.Addresses.V6; v6 != "" {
		addrs = append(addrs, v6+"/128")
	}

	allowed := peer.AllowedIPs
	if len(allowed) == 0 {
		allowed = defaultAllowedIPs
	}

	for i, s := range opts.DNS {
		if net.ParseIP(s) == nil {
			return Profile{}, fmt.Errorf("dns[%d]: %q is not an IP address", i, s)
		}
	}

	return Profile{
		PrivateKey:    priv.String(),
		Addresses:     addrs,
		DNS:           opts.DNS,
		MTU:           opts.MTU,
		PeerPublicKey: peerKey.String(),
		AllowedIPs:    append([]string(nil), allowed...),
		Endpoint:      endpoint,
	}, nil
}

// endpointFor prefers the hostname; address-only endpoints get the
// default port when the service reports none.
func endpointFor(ep enrollment.Endpoint) (string, error) {
	if host := strings.TrimSpace(ep.Host); host != "" {
		if _, _, err := net.SplitHostPort(host); err != nil {
			return net.JoinHostPort(host, strconv.Itoa(DefaultEndpointPort)), nil
		}
		return host, nil
	}
	for _, addr := range []string{ep.V4, ep.V6} {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			host, port = strings.Trim(addr, "[]"), ""
		}
		if port == "" || port == "0" {
			port = strconv.Itoa(firstPort(ep.Ports))
		}
		return net.JoinHostPort(host, port), nil
	}
	return "", errors.New("peer has no endpoint")
}

func firstPort(ports []int) int {
	for _, p := range ports {
		if p > 0 && p <= 65535 {
			return p
		}
	}
	return DefaultEndpointPort
}

func (p Profile) Render(w io.Writer) error {
	return tmpl.Execute(w, p)
}

func (p Profile) String() string {
	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// WireGuardConfig converts the profile for applying to a kernel interface.
func (p Profile) WireGuardConfig(iface string) (wireguard.Config, error) {
	key, err := wgtypes.ParseKey(p.PrivateKey)
	if err != nil {
		return wireguard.Config{}, fmt.Errorf("parse private key: %w", err)
	}
	return wireguard.Config{
		InterfaceName: iface,
		PrivateKey:    key,
		Addresses:     p.Addresses,
		MTU:           p.MTU,
		PeerPublicKey: p.PeerPublicKey,
		PeerEndpoint:  p.Endpoint,
		AllowedIPs:    p.AllowedIPs,
	}, nil
}
