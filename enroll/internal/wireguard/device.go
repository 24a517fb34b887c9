package wireguard

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Config holds the kernel interface settings for one enrolled tunnel.
type Config struct {
	InterfaceName string
	PrivateKey    wgtypes.Key
	Addresses     []string // CIDR, e.g. 172.16.0.2/32
	MTU           int
	PeerPublicKey string
	PeerEndpoint  string
	AllowedIPs    []string
}

type State struct {
	InterfaceName string
	Exists        bool
	PeerCount     int
	PeerEndpoint  string
}

// Apply creates or reuses the WireGuard link, assigns addresses and
// configures the single peer. Routes are installed for every allowed CIDR
// except default routes.
func Apply(cfg Config) error {
	if os.Geteuid() != 0 {
		return errors.New("must run as root to configure WireGuard")
	}
	if cfg.InterfaceName == "" {
		return errors.New("interface name is required")
	}
	if cfg.PeerPublicKey == "" || cfg.PeerEndpoint == "" {
		return errors.New("peer public key and endpoint are required")
	}

	wgCfg, err := buildConfig(cfg)
	if err != nil {
		return err
	}

	link, err := ensureWireGuardLink(cfg.InterfaceName)
	if err != nil {
		return err
	}

	if err := setInterfaceAddresses(link, cfg.Addresses); err != nil {
		return err
	}

	if cfg.MTU > 0 {
		if err := netlink.LinkSetMTU(link, cfg.MTU); err != nil {
			return fmt.Errorf("link set mtu: %w", err)
		}
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("link set up: %w", err)
	}

	client, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("wgctrl init: %w", err)
	}
	defer client.Close()

	if err := client.ConfigureDevice(cfg.InterfaceName, wgCfg); err != nil {
		return fmt.Errorf("configure device: %w", err)
	}

	return ensureRoutes(link, cfg.AllowedIPs)
}

// Down removes the WireGuard interface. A missing interface is not an error.
func Down(iface string) error {
	if iface == "" {
		return errors.New("interface name is required")
	}
	link, err := netlink.LinkByName(iface)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("link lookup: %w", err)
	}
	if err := netlink.LinkDel(link); err != nil {
		return fmt.Errorf("link delete: %w", err)
	}
	return nil
}

func ReadState(iface string) (State, error) {
	if iface == "" {
		return State{}, errors.New("interface name is required")
	}
	_, err := netlink.LinkByName(iface)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return State{InterfaceName: iface, Exists: false}, nil
		}
		return State{}, fmt.Errorf("link lookup: %w", err)
	}

	client, err := wgctrl.New()
	if err != nil {
		return State{}, fmt.Errorf("wgctrl init: %w", err)
	}
	defer client.Close()

	dev, err := client.Device(iface)
	if err != nil {
		return State{}, fmt.Errorf("wg device: %w", err)
	}
	st := State{
		InterfaceName: iface,
		Exists:        true,
		PeerCount:     len(dev.Peers),
	}
	if len(dev.Peers) > 0 && dev.Peers[0].Endpoint != nil {
		st.PeerEndpoint = dev.Peers[0].Endpoint.String()
	}
	return st, nil
}

func ensureWireGuardLink(name string) (netlink.Link, error) {
	link, err := netlink.LinkByName(name)
	if err == nil {
		if link.Type() != "wireguard" {
			return nil, fmt.Errorf("link %s exists but is not wireguard", name)
		}
		return link, nil
	}

	var notFound netlink.LinkNotFoundError
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("link lookup: %w", err)
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	wgLink := &netlink.Wireguard{LinkAttrs: attrs}
	if err := netlink.LinkAdd(wgLink); err != nil {
		return nil, fmt.Errorf("link add: %w", err)
	}
	return wgLink, nil
}

func setInterfaceAddresses(link netlink.Link, addresses []string) error {
	existing, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return fmt.Errorf("list addresses: %w", err)
	}
	for _, addr := range existing {
		if err := netlink.AddrDel(link, &addr); err != nil {
			return fmt.Errorf("delete address: %w", err)
		}
	}
	for _, a := range addresses {
		addr, err := netlink.ParseAddr(a)
		if err != nil {
			return fmt.Errorf("parse address %s: %w", a, err)
		}
		if err := netlink.AddrAdd(link, addr); err != nil {
			return fmt.Errorf("add address %s: %w", a, err)
		}
	}
	return nil
}

func ensureRoutes(link netlink.Link, allowed []string) error {
	for i, cidr := range allowed {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return fmt.Errorf("route[%d] parse: %w", i, err)
		}
		if isDefaultRoute(ipNet) {
			continue
		}
		route := netlink.Route{
			LinkIndex: link.Attrs().Index,
			Dst:       ipNet,
		}
		if err := netlink.RouteReplace(&route); err != nil {
			if errors.Is(err, syscall.EEXIST) {
				continue
			}
			return fmt.Errorf("route[%d] add: %w", i, err)
		}
	}
	return nil
}

func isDefaultRoute(n *net.IPNet) bool {
	ones, _ := n.Mask.Size()
	return ones == 0
}

func buildConfig(cfg Config) (wgtypes.Config, error) {
	pubKey, err := wgtypes.ParseKey(cfg.PeerPublicKey)
	if err != nil {
		return wgtypes.Config{}, fmt.Errorf("parse peer public key: %w", err)
	}
	endpoint, err := net.ResolveUDPAddr("udp", cfg.PeerEndpoint)
	if err != nil {
		return wgtypes.Config{}, fmt.Errorf("resolve peer endpoint: %w", err)
	}

	allowed := make([]net.IPNet, 0, len(cfg.AllowedIPs))
	for i, cidr := range cfg.AllowedIPs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return wgtypes.Config{}, fmt.Errorf("allowed_ips[%d]: %w", i, err)
		}
		allowed = append(allowed, *ipNet)
	}

	return wgtypes.Config{
		PrivateKey:   &cfg.PrivateKey,
		ReplacePeers: true,
		Peers: []wgtypes.PeerConfig{{
			PublicKey:         pubKey,
			Endpoint:          endpoint,
			AllowedIPs:        allowed,
			ReplaceAllowedIPs: true,
		}},
	}, nil
}
