package state

import (
	"fmt"
	"net"
	"net/netip"
	"os"

	"github.com/cilium/cilium/pkg/ip"
	"github.com/goccy/go-yaml"
)

var ConfigPath = "/etc/babelcore/config.yaml"

// KeyCfg is a key as written in the configuration file.
type KeyCfg struct {
	Id    string
	Type  AuthType
	Value Secret
}

type InterfaceCfg struct {
	Name string
	Keys []string `yaml:",omitempty"` // ids of the keys used on this interface
}

// ExportCfg selects which installed routes are exported to the forwarding table.
type ExportCfg struct {
	Include []netip.Prefix `yaml:",omitempty"` // empty means everything
	Exclude []netip.Prefix `yaml:",omitempty"`
}

// Config represents local node-level configuration
type Config struct {
	Id         string         // unique name for this node, used as the log prefix
	Port       uint16         `yaml:",omitempty"`         // protocol port, defaults to 6696
	LogPath    string         `yaml:"log_path,omitempty"` // if not empty, logs are also written to this file
	Keys       []KeyCfg       `yaml:",omitempty"`
	Interfaces []InterfaceCfg `yaml:",omitempty"`
	Export     ExportCfg      `yaml:",omitempty"`
}

func (c *Config) ProtocolPort() uint16 {
	if c.Port == 0 {
		return DefaultPort
	}
	return c.Port
}

// ExportPrefixes computes include - exclude. An empty include list exports everything.
func (c *Config) ExportPrefixes() []netip.Prefix {
	include := c.Export.Include
	if len(include) == 0 {
		include = []netip.Prefix{
			netip.MustParsePrefix("0.0.0.0/0"),
			netip.MustParsePrefix("::/0"),
		}
		if len(c.Export.Exclude) == 0 {
			return include
		}
	}
	if len(c.Export.Exclude) == 0 {
		return CoalescePrefix(include)
	}
	return SubtractPrefix(include, c.Export.Exclude)
}

func ReadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(file)
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BuildKeyRing creates the key ring and the interfaces described by cfg. Each
// interface holds a reference on its keys. On error every key built so far is released.
func BuildKeyRing(cfg *Config) (*KeyRing, map[string]*Interface, error) {
	ring := NewKeyRing()
	for _, kc := range cfg.Keys {
		err := ring.Add(NewKey(kc.Id, kc.Type, kc.Value))
		if err != nil {
			ReleaseKeyRing(ring, nil)
			return nil, nil, err
		}
	}
	ifaces, err := buildInterfaces(ring, cfg.Interfaces)
	if err != nil {
		ReleaseKeyRing(ring, nil)
		return nil, nil, err
	}
	return ring, ifaces, nil
}

func buildInterfaces(ring *KeyRing, cfgs []InterfaceCfg) (map[string]*Interface, error) {
	ifaces := make(map[string]*Interface, len(cfgs))
	for _, ic := range cfgs {
		if _, ok := ifaces[ic.Name]; ok {
			ReleaseKeyRing(nil, ifaces)
			return nil, fmt.Errorf("duplicate interface %s", ic.Name)
		}
		iface := &Interface{Name: ic.Name}
		ifaces[ic.Name] = iface
		for _, id := range ic.Keys {
			k := ring.Get(id)
			if k == nil {
				ReleaseKeyRing(nil, ifaces)
				return nil, fmt.Errorf("interface %s references unknown key %s", ic.Name, id)
			}
			iface.AttachKey(k)
		}
	}
	return ifaces, nil
}

// ReleaseKeyRing drops the references held by ifaces and ring, wiping every key no one else holds.
func ReleaseKeyRing(ring *KeyRing, ifaces map[string]*Interface) {
	for _, iface := range ifaces {
		iface.DetachAll()
	}
	if ring == nil {
		return
	}
	for _, id := range ring.Ids() {
		ring.Remove(id)
	}
}

func toIPNets(prefixes []netip.Prefix) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(prefixes))
	for _, p := range prefixes {
		if p.IsValid() {
			nets = append(nets, &net.IPNet{
				IP:   p.Addr().AsSlice(),
				Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
			})
		}
	}
	return nets
}

func fromIPNets(nets []*net.IPNet) []netip.Prefix {
	output := make([]netip.Prefix, 0, len(nets))
	for _, n := range nets {
		if addr, ok := netip.AddrFromSlice(n.IP); ok {
			ones, _ := n.Mask.Size()
			output = append(output, netip.PrefixFrom(addr.Unmap(), ones))
		}
	}
	return output
}

func SubtractPrefix(includesPrefix, excludesPrefix []netip.Prefix) []netip.Prefix {
	result := ip.RemoveCIDRs(toIPNets(includesPrefix), toIPNets(excludesPrefix))
	ipv4, ipv6 := ip.CoalesceCIDRs(result)
	return fromIPNets(append(ipv4, ipv6...))
}

func CoalescePrefix(prefixes []netip.Prefix) []netip.Prefix {
	ipv4, ipv6 := ip.CoalesceCIDRs(toIPNets(prefixes))
	return fromIPNets(append(ipv4, ipv6...))
}
