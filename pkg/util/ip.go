package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidateIPv4 checks that s is a dotted-quad IPv4 address usable on a
// loopback interface. Addresses in the 0/8 and 224+ ranges are rejected
// because NSO-managed IOS devices refuse them on interfaces.
func ValidateIPv4(s string) error {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return fmt.Errorf("invalid IPv4 address: %s", s)
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || p == "" || n < 0 || n > 255 {
			return fmt.Errorf("invalid IPv4 address: %s (octets must be 0-255)", s)
		}
		// Reject leading zeros ("10.01.0.1") — inet_aton would read them as octal
		if len(p) > 1 && p[0] == '0' {
			return fmt.Errorf("invalid IPv4 address: %s (leading zero in octet %q)", s, p)
		}
	}
	first, _ := strconv.Atoi(parts[0])
	if first == 0 {
		return fmt.Errorf("invalid IPv4 address: %s (first octet 0 is reserved)", s)
	}
	if first >= 224 {
		return fmt.Errorf("invalid IPv4 address: %s (multicast/reserved range)", s)
	}
	return nil
}

// ValidateNetmask checks that s is a contiguous dotted-quad subnet mask.
func ValidateNetmask(s string) error {
	_, err := NetmaskToPrefix(s)
	return err
}

// NetmaskToPrefix converts a dotted-quad mask to a prefix length.
// Non-contiguous masks are rejected.
func NetmaskToPrefix(s string) (int, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return 0, fmt.Errorf("invalid subnet mask: %s", s)
	}
	mask := net.IPMask(ip.To4())
	ones, bits := mask.Size()
	if bits != 32 || (ones == 0 && s != "0.0.0.0") {
		return 0, fmt.Errorf("invalid subnet mask: %s (must be contiguous)", s)
	}
	return ones, nil
}

// PrefixToNetmask converts a prefix length (0-32) to a dotted-quad mask.
func PrefixToNetmask(prefix int) (string, error) {
	if prefix < 0 || prefix > 32 {
		return "", fmt.Errorf("invalid prefix length: %d", prefix)
	}
	mask := net.CIDRMask(prefix, 32)
	return net.IP(mask).String(), nil
}

// NormalizeNetmask accepts either a dotted-quad mask ("255.255.255.0")
// or a bare prefix length ("24") and returns the dotted-quad form.
// The reconciler and the NSO payload builders only ever see dotted-quad.
func NormalizeNetmask(s string) (string, error) {
	if !strings.Contains(s, ".") {
		prefix, err := strconv.Atoi(s)
		if err != nil {
			return "", fmt.Errorf("invalid netmask: %s", s)
		}
		return PrefixToNetmask(prefix)
	}
	if err := ValidateNetmask(s); err != nil {
		return "", err
	}
	return s, nil
}
