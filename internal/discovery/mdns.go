// Package discovery makes the emulated controller findable on the local network
// through an mDNS service record and SSDP search responses.
package discovery

import (
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/device"
)

// mDNS service type and domain of WLED controllers.
const (
	ServiceType = "_wled._tcp"
	Domain      = "local."
)

// registration is a live mDNS record.
type registration interface {
	Shutdown()
}

// registerFunc publishes a record. It matches zeroconf.RegisterProxy.
type registerFunc func(instance, service, domain string, port int, host string, ips []string, text []string, ifaces []net.Interface) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, host string, ips []string, text []string, ifaces []net.Interface) (registration, error) {
	server, err := zeroconf.RegisterProxy(instance, service, domain, port, host, ips, text, ifaces)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Announcer registers the device's mDNS record once and removes it on Stop.
type Announcer struct {
	identity device.Identity
	register registerFunc

	mu  sync.Mutex
	reg registration
}

// NewAnnouncer creates an announcer for identity.
func NewAnnouncer(identity device.Identity) *Announcer {
	return &Announcer{
		identity: identity,
		register: zeroconfRegister,
	}
}

// Start registers the record. Failure is logged and reported but is not fatal
// for the bridge: the device stays reachable by address.
func (a *Announcer) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reg != nil {
		return nil
	}

	id := a.identity
	reg, err := a.register(
		id.Name,
		ServiceType,
		Domain,
		id.HTTPPort,
		id.Hostname(),
		[]string{id.IP.String()},
		TXTRecords(id),
		nil,
	)
	if err != nil {
		log.Warn().Err(err).Str("name", id.Name).Msg("mDNS registration failed, continuing without announcement")
		return err
	}
	a.reg = reg

	log.Info().
		Str("name", id.Name).
		Str("service", ServiceType).
		Int("port", id.HTTPPort).
		Msg("mDNS service registered")
	return nil
}

// Stop unregisters the record. Safe to call when Start failed.
func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reg == nil {
		return
	}
	a.reg.Shutdown()
	a.reg = nil
	log.Info().Str("name", a.identity.Name).Msg("mDNS service unregistered")
}

// TXTAttributes returns the key/value attributes advertised with the record.
func TXTAttributes(id device.Identity) map[string]string {
	return map[string]string{
		"id":   id.ID(),
		"mac":  strings.ToUpper(id.MAC),
		"ip":   id.IP.String(),
		"fw":   device.FirmwareLabel,
		"arch": device.VendorLabel,
		"json": "true",
		"name": id.Name,
		"leds": strconv.Itoa(id.LEDCount),
	}
}

// TXTRecords returns the attributes as sorted key=value strings.
func TXTRecords(id device.Identity) []string {
	attrs := TXTAttributes(id)
	records := make([]string, 0, len(attrs))
	for k, v := range attrs {
		records = append(records, k+"="+v)
	}
	sort.Strings(records)
	return records
}
