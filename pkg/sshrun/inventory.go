// Package sshrun runs ad-hoc show commands over SSH against a YAML
// host inventory. It complements the NSO path: NSO owns configuration,
// sshrun is for quick operational reads straight off the devices.
package sshrun

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/netops-lab/loopctl/pkg/util"
)

// Host is one SSH-reachable device.
type Host struct {
	Name     string   `yaml:"name"`
	Address  string   `yaml:"address"`
	Port     int      `yaml:"port,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Groups   []string `yaml:"groups,omitempty"`
}

// Addr returns the dial address.
func (h Host) Addr() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

// InGroup reports whether the host belongs to the named group.
func (h Host) InGroup(group string) bool {
	for _, g := range h.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Defaults are applied to hosts that leave a field unset.
type Defaults struct {
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Inventory is the parsed host inventory.
type Inventory struct {
	Defaults Defaults `yaml:"defaults"`
	Hosts    []Host   `yaml:"hosts"`
}

// LoadInventory reads and validates an inventory file.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}

	inv, err := ParseInventory(data)
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", path, err)
	}
	return inv, nil
}

// ParseInventory decodes YAML inventory and applies defaults.
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&inv); err != nil {
		return nil, util.NewConfigurationError("", "parsing inventory: %v", err)
	}

	if inv.Defaults.Port == 0 {
		inv.Defaults.Port = 22
	}

	var vb util.ValidationBuilder
	seen := make(map[string]bool, len(inv.Hosts))
	for i := range inv.Hosts {
		h := &inv.Hosts[i]
		if h.Name == "" {
			vb.AddErrorf("host %d has no name", i)
			continue
		}
		if seen[h.Name] {
			vb.AddErrorf("host %s declared more than once", h.Name)
		}
		seen[h.Name] = true
		if h.Address == "" {
			vb.AddErrorf("host %s has no address", h.Name)
		}

		if h.Port == 0 {
			h.Port = inv.Defaults.Port
		}
		if h.Username == "" {
			h.Username = inv.Defaults.Username
		}
		if h.Password == "" {
			h.Password = inv.Defaults.Password
		}
		if h.Username == "" {
			vb.AddErrorf("host %s has no username (and no default)", h.Name)
		}
	}

	if vb.HasErrors() {
		return nil, util.NewConfigurationError("", "%v", vb.Build())
	}
	return &inv, nil
}

// Filter returns hosts by group name; an empty group selects all.
func (inv *Inventory) Filter(group string) []Host {
	if group == "" {
		return inv.Hosts
	}
	var out []Host
	for _, h := range inv.Hosts {
		if h.InGroup(group) {
			out = append(out, h)
		}
	}
	return out
}

// Host returns the host with the given name, or nil.
func (inv *Inventory) Host(name string) *Host {
	for i := range inv.Hosts {
		if inv.Hosts[i].Name == name {
			return &inv.Hosts[i]
		}
	}
	return nil
}
