package nso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/netops-lab/loopctl/pkg/intent"
	"github.com/netops-lab/loopctl/pkg/reconcile"
	"github.com/netops-lab/loopctl/pkg/util"
)

// Client satisfies the reconciler's apply surface.
var _ reconcile.Client = (*Client)(nil)

// iosLoopback mirrors the cisco-ios NED's Loopback container.
type iosLoopback struct {
	Name        json.Number `json:"name"`
	Description string      `json:"description,omitempty"`
	IP          struct {
		Address struct {
			Primary struct {
				Address string `json:"address,omitempty"`
				Mask    string `json:"mask,omitempty"`
			} `json:"primary"`
		} `json:"address"`
	} `json:"ip"`
}

// ListLoopbacks observes the device's current loopback interfaces. It
// runs sync-from first so the CDB reflects live state. Failures are
// reported as ObservationError; a device with no interfaces configured
// observes as an empty set, not an error.
func (c *Client) ListLoopbacks(ctx context.Context, device string) ([]reconcile.ObservedLoopback, error) {
	if err := c.SyncFrom(ctx, device); err != nil {
		return nil, util.NewObservationError(device, err)
	}

	url := fmt.Sprintf("%s/data/tailf-ncs:devices/device=%s/config/tailf-ned-cisco-ios:interface",
		c.baseURL, device)

	var out struct {
		Interface struct {
			Loopback []iosLoopback `json:"Loopback"`
		} `json:"tailf-ned-cisco-ios:interface"`
	}
	if err := c.getJSON(ctx, url, &out); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, util.NewObservationError(device, err)
	}

	observed := make([]reconcile.ObservedLoopback, 0, len(out.Interface.Loopback))
	for _, lb := range out.Interface.Loopback {
		id, err := lb.Name.Int64()
		if err != nil {
			util.WithDevice(device).Warnf("skipping loopback with non-numeric name %q", lb.Name)
			continue
		}
		observed = append(observed, reconcile.ObservedLoopback{
			ID:          int(id),
			IPv4:        lb.IP.Address.Primary.Address,
			Netmask:     lb.IP.Address.Primary.Mask,
			Description: lb.Description,
		})
	}

	util.WithDevice(device).Debugf("observed %d loopbacks", len(observed))
	return observed, nil
}

// CreateLoopback configures a new loopback interface. With dryRun the
// change is validated through NSO's native dry-run and not committed.
// Committed changes return NSO's rollback fixed-number.
func (c *Client) CreateLoopback(ctx context.Context, device string, lb intent.Loopback, dryRun bool) (int, error) {
	return c.configureLoopback(ctx, device, lb, dryRun)
}

// UpdateLoopback reconfigures an existing loopback. The NED merges the
// payload, so update and create share the same RESTCONF request.
func (c *Client) UpdateLoopback(ctx context.Context, device string, lb intent.Loopback, dryRun bool) (int, error) {
	return c.configureLoopback(ctx, device, lb, dryRun)
}

func (c *Client) configureLoopback(ctx context.Context, device string, lb intent.Loopback, dryRun bool) (int, error) {
	url := fmt.Sprintf("%s/data/tailf-ncs:devices/device=%s/config/tailf-ned-cisco-ios:interface",
		c.baseURL, device)
	if dryRun {
		url += "?dry-run=native"
	} else {
		url += "?rollback-id=true"
	}

	// Intent fields are validated at the load boundary (no XML
	// metacharacters in descriptions, dotted-quad addresses), so the
	// payload can be assembled directly.
	var sb strings.Builder
	sb.WriteString("<Loopback>\n")
	fmt.Fprintf(&sb, "  <name>%d</name>\n", lb.ID)
	if lb.Description != "" {
		fmt.Fprintf(&sb, "  <description>%s</description>\n", lb.Description)
	}
	sb.WriteString("  <ip>\n    <address>\n      <primary>\n")
	fmt.Fprintf(&sb, "        <address>%s</address>\n", lb.IPv4)
	fmt.Fprintf(&sb, "        <mask>%s</mask>\n", lb.Netmask)
	sb.WriteString("      </primary>\n    </address>\n  </ip>\n</Loopback>")

	log := util.WithLoopback(device, lb.ID)
	if dryRun {
		log.Infof("[DRY-RUN] validating %s %s/%s", lb.Name(), lb.IPv4, lb.Netmask)
	} else {
		log.Infof("configuring %s %s/%s", lb.Name(), lb.IPv4, lb.Netmask)
	}

	resp, err := c.do(ctx, http.MethodPost, url, "application/yang-data+xml", strings.NewReader(sb.String()))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if dryRun {
		return 0, nil
	}
	return parseRollbackID(resp.Body, log)
}

// DeleteLoopback removes a loopback interface. A 404 is treated as
// already-deleted.
func (c *Client) DeleteLoopback(ctx context.Context, device string, id int, dryRun bool) (int, error) {
	url := fmt.Sprintf("%s/data/tailf-ncs:devices/device=%s/config/tailf-ned-cisco-ios:interface/Loopback=%d",
		c.baseURL, device, id)
	if dryRun {
		url += "?dry-run=native"
	} else {
		url += "?rollback-id=true"
	}

	log := util.WithLoopback(device, id)
	if dryRun {
		log.Infof("[DRY-RUN] would delete Loopback%d", id)
	} else {
		log.Infof("deleting Loopback%d", id)
	}

	resp, err := c.do(ctx, http.MethodDelete, url, "", nil)
	if err != nil {
		if IsNotFound(err) {
			log.Debug("already absent")
			return 0, nil
		}
		return 0, err
	}
	defer resp.Body.Close()

	if dryRun {
		return 0, nil
	}
	return parseRollbackID(resp.Body, log)
}
