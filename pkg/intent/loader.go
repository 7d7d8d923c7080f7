package intent

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/netops-lab/loopctl/pkg/util"
)

// MaxLoopbackID is the highest loopback number IOS accepts.
const MaxLoopbackID = 2147483647

// maxDescriptionLen matches the IOS interface description limit.
const maxDescriptionLen = 240

// Load reads and validates an intent file.
func Load(path string) (*Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading intent file: %w", err)
	}

	in, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("intent file %s: %w", path, err)
	}
	return in, nil
}

// Parse decodes YAML intent and validates it. Unknown fields are
// rejected so typos in policy flags fail loudly instead of silently
// defaulting to safe mode.
func Parse(data []byte) (*Intent, error) {
	var in Intent
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		return nil, util.NewConfigurationError("", "parsing intent: %v", err)
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Validate checks the intent and normalizes netmasks to dotted-quad.
// All findings for a device are reported together.
func (in *Intent) Validate() error {
	if len(in.Devices) == 0 {
		return util.NewConfigurationError("", "no devices declared")
	}

	seen := make(map[string]bool, len(in.Devices))
	for i := range in.Devices {
		dev := &in.Devices[i]
		if dev.Name == "" {
			return util.NewConfigurationError("", "device %d has no name", i)
		}
		if !validHostname(dev.Name) {
			return util.NewConfigurationError(dev.Name,
				"invalid hostname (alphanumeric, hyphen, underscore only)")
		}
		if seen[dev.Name] {
			return util.NewConfigurationError(dev.Name, "device declared more than once")
		}
		seen[dev.Name] = true

		if err := dev.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) validate() error {
	var vb util.ValidationBuilder

	ids := make(map[int]bool, len(d.Loopbacks))
	for i := range d.Loopbacks {
		lb := &d.Loopbacks[i]

		if lb.ID < 0 || lb.ID > MaxLoopbackID {
			vb.AddErrorf("loopback id %d out of range 0-%d", lb.ID, MaxLoopbackID)
		}
		if ids[lb.ID] {
			vb.AddErrorf("duplicate loopback id %d", lb.ID)
		}
		ids[lb.ID] = true

		if err := util.ValidateIPv4(lb.IPv4); err != nil {
			vb.AddErrorf("Loopback%d: %v", lb.ID, err)
		}

		mask, err := util.NormalizeNetmask(lb.Netmask)
		if err != nil {
			vb.AddErrorf("Loopback%d: %v", lb.ID, err)
		} else {
			lb.Netmask = mask
		}

		if err := validateDescription(lb.Description); err != nil {
			vb.AddErrorf("Loopback%d: %v", lb.ID, err)
		}
	}

	if vb.HasErrors() {
		return util.NewConfigurationError(d.Name, "%v", vb.Build())
	}
	return nil
}

func validHostname(name string) bool {
	if len(name) > 63 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func validateDescription(desc string) error {
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}
	// These break the XML payload sent to the NED.
	if strings.ContainsAny(desc, `<>&"'`) {
		return fmt.Errorf("description contains invalid characters (<>&\"')")
	}
	return nil
}
