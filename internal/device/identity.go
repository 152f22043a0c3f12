// Package device models the emulated WLED controller: its fixed identity and its small mutable status.
package device

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Defaults advertised by the emulated controller.
const (
	DefaultMAC          = "44:1d:64:f4:00:00"
	DefaultHTTPPort     = 80
	DefaultRealtimePort = 21324

	FirmwareLabel = "Majon3z"
	VendorLabel   = "Made by"
	Brand         = "WLED"
	Product       = "FOSS"
	Release       = "ESP32"
	VersionID     = 251013
	ServerVersion = "0.15.0"
)

// Identity is created once at startup and never mutated.
// It is shared by the discovery responders and the control-plane API.
type Identity struct {
	IP           net.IP
	MAC          string
	Name         string
	LEDCount     int
	HTTPPort     int
	RealtimePort int
}

// ID is the MAC address without separators, lowercased.
func (i Identity) ID() string {
	return strings.ToLower(strings.ReplaceAll(i.MAC, ":", ""))
}

// USN is the unique service name advertised over SSDP.
func (i Identity) USN() string {
	return "uuid:WLED-" + i.ID()
}

// Location is the control-plane URL advertised over SSDP.
func (i Identity) Location() string {
	return fmt.Sprintf("http://%s/json", net.JoinHostPort(i.IP.String(), strconv.Itoa(i.HTTPPort)))
}

// Hostname is the mDNS host label of the emulated controller.
func (i Identity) Hostname() string {
	return "wled-" + i.ID()
}
