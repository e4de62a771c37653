package config

import "strings"

// ParseHost builds a Host from a bare address string.
func ParseHost(address string) Host {
	return Host{Address: strings.TrimSpace(address)}.Normalize()
}

// ParseHosts builds Hosts from bare address strings, in order.
func ParseHosts(addresses []string) []Host {
	hosts := make([]Host, 0, len(addresses))
	for _, a := range addresses {
		hosts = append(hosts, ParseHost(a))
	}
	return hosts
}

// Normalize fills in defaults so a bare address and a record with only an
// address are indistinguishable.
func (h Host) Normalize() Host {
	h.Address = strings.TrimSpace(h.Address)
	h.Name = strings.TrimSpace(h.Name)
	h.Encoding = strings.TrimSpace(h.Encoding)
	if h.Name == "" {
		h.Name = h.Address
	}
	return h
}

// Label is the name used to tag this host's log lines.
func (h Host) Label() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Address
}

// String renders the host for display: "name (address)" or just the address.
func (h Host) String() string {
	if h.Name != "" && h.Name != h.Address {
		return h.Name + " (" + h.Address + ")"
	}
	return h.Address
}

// MarshalYAML writes a host with no overrides back as a bare string.
func (h Host) MarshalYAML() (interface{}, error) {
	if (h.Name == "" || h.Name == h.Address) && h.Encoding == "" {
		return h.Address, nil
	}
	type plain Host
	return plain(h), nil
}
