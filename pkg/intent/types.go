// Package intent handles loading and validating declared loopback intent.
//
// Intent is the source of truth for what each device's loopback
// interfaces should look like. It is loaded from YAML, validated at the
// load boundary, and immutable for the duration of a reconciliation
// pass — the reconciler never sees a malformed shape.
package intent

import "fmt"

// Loopback declares the desired state of one loopback interface.
type Loopback struct {
	ID          int    `yaml:"id" json:"id"`
	IPv4        string `yaml:"ipv4" json:"ipv4"`
	Netmask     string `yaml:"netmask" json:"netmask"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Name returns the interface name as it appears on the device.
func (l Loopback) Name() string {
	return fmt.Sprintf("Loopback%d", l.ID)
}

// Device declares the desired loopback set for one device, plus the
// deletion policy for loopbacks found on the device but not declared.
type Device struct {
	Name string `yaml:"name" json:"name"`

	// DeleteUnmanaged controls whether observed loopbacks with no
	// corresponding intent entry are torn down. The default (false) is
	// safe mode: undeclared loopbacks are left alone.
	DeleteUnmanaged bool `yaml:"delete_unmanaged_loopbacks" json:"delete_unmanaged_loopbacks"`

	Loopbacks []Loopback `yaml:"loopbacks" json:"loopbacks"`
}

// Loopback returns the declared loopback with the given id, or false.
func (d *Device) Loopback(id int) (Loopback, bool) {
	for _, lb := range d.Loopbacks {
		if lb.ID == id {
			return lb, true
		}
	}
	return Loopback{}, false
}

// Intent is the full declared network state.
type Intent struct {
	Devices []Device `yaml:"devices" json:"devices"`
}

// Device returns the device intent with the given name, or nil.
func (in *Intent) Device(name string) *Device {
	for i := range in.Devices {
		if in.Devices[i].Name == name {
			return &in.Devices[i]
		}
	}
	return nil
}

// DeviceNames returns the declared device names in file order.
func (in *Intent) DeviceNames() []string {
	names := make([]string, 0, len(in.Devices))
	for _, d := range in.Devices {
		names = append(names, d.Name)
	}
	return names
}
