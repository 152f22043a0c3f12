package discovery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"

	"github.com/dokzlo13/wledbridge/internal/device"
)

// SSDP multicast group and protocol strings.
const (
	SSDPAddr = "239.255.255.250"
	SSDPPort = 1900

	searchMethod    = "M-SEARCH"
	discoverMan     = "ssdp:discover"
	DeviceType      = "urn:schemas-upnp-org:device:basic:1"
	cacheMaxAge     = 1800
	maxDatagramSize = 2048
)

// acceptedTargets are the ST values answered. An absent ST is also answered.
var acceptedTargets = map[string]bool{
	"ssdp:all":        true,
	"upnp:rootdevice": true,
	DeviceType:        true,
}

// packetWriter sends a datagram to addr. net.PacketConn satisfies it.
type packetWriter interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Responder answers SSDP M-SEARCH requests with the device's location.
type Responder struct {
	identity device.Identity
	response []byte
}

// NewResponder creates a responder for identity.
func NewResponder(identity device.Identity) *Responder {
	return &Responder{
		identity: identity,
		response: buildResponse(identity),
	}
}

// ListenAndServe joins the SSDP multicast group and answers searches until ctx is cancelled.
func (r *Responder) ListenAndServe(ctx context.Context) error {
	conn, err := listenShared(ctx, fmt.Sprintf("0.0.0.0:%d", SSDPPort))
	if err != nil {
		return fmt.Errorf("failed to bind SSDP port: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: net.ParseIP(SSDPAddr)}
	if err := joinAll(pc, group); err != nil {
		conn.Close()
		return fmt.Errorf("failed to join SSDP group: %w", err)
	}

	log.Info().Str("group", SSDPAddr).Int("port", SSDPPort).Msg("Listening for SSDP searches")
	return r.Serve(ctx, conn)
}

// listenShared binds a UDP socket that other SSDP listeners on the host
// (the hub's own discovery, for one) can bind as well.
func listenShared(ctx context.Context, addr string) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	return lc.ListenPacket(ctx, "udp4", addr)
}

// joinAll joins group on every multicast-capable interface, falling back to
// the default interface. It fails only if no join succeeded.
func joinAll(pc *ipv4.PacketConn, group net.Addr) error {
	ifaces, _ := net.Interfaces()
	joined := 0
	for i := range ifaces {
		ifi := ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := pc.JoinGroup(&ifi, group); err == nil {
			joined++
		}
	}
	if joined > 0 {
		return nil
	}
	return pc.JoinGroup(nil, group)
}

// Serve reads search requests from conn until ctx is cancelled. conn is closed on return.
func (r *Responder) Serve(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	defer conn.Close()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("SSDP read failed")
			continue
		}
		if err := r.Handle(buf[:n], addr, conn); err != nil {
			log.Warn().Err(err).Str("to", addr.String()).Msg("SSDP response failed")
		}
	}
}

// Handle answers a single datagram if it is a matching search.
// Unrelated or malformed datagrams are ignored without error.
func (r *Responder) Handle(data []byte, from net.Addr, w packetWriter) error {
	if !IsSearch(data) {
		return nil
	}

	log.Debug().Str("from", from.String()).Msg("SSDP search received, responding")
	_, err := w.WriteTo(r.response, from)
	return err
}

// IsSearch reports whether data is an M-SEARCH discover request for a target we answer.
func IsSearch(data []byte) bool {
	// Some clients omit the terminating blank line.
	body := io.MultiReader(bytes.NewReader(data), strings.NewReader("\r\n\r\n"))
	req, err := http.ReadRequest(bufio.NewReader(body))
	if err != nil {
		return false
	}
	if req.Method != searchMethod {
		return false
	}
	if strings.Trim(req.Header.Get("MAN"), `"`) != discoverMan {
		return false
	}
	st := req.Header.Get("ST")
	return st == "" || acceptedTargets[st]
}

func buildResponse(id device.Identity) []byte {
	lines := []string{
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: max-age=" + strconv.Itoa(cacheMaxAge),
		"EXT:",
		"LOCATION: " + id.Location(),
		"SERVER: WLED/" + device.ServerVersion + " UPnP/1.1",
		"ST: " + DeviceType,
		"USN: " + id.USN(),
		"X-WLED-NAME: " + id.Name,
		"X-WLED-LEDS: " + strconv.Itoa(id.LEDCount),
		"",
		"",
	}
	return []byte(strings.Join(lines, "\r\n"))
}
