package discovery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/wledbridge/internal/device"
)

func testIdentity() device.Identity {
	return device.Identity{
		IP:           net.IPv4(192, 168, 1, 50),
		MAC:          device.DefaultMAC,
		Name:         "HomeAssistantBridge",
		LEDCount:     3,
		HTTPPort:     80,
		RealtimePort: device.DefaultRealtimePort,
	}
}

type capturedPacket struct {
	data []byte
	to   net.Addr
}

type captureWriter struct {
	packets []capturedPacket
}

func (w *captureWriter) WriteTo(b []byte, addr net.Addr) (int, error) {
	w.packets = append(w.packets, capturedPacket{data: append([]byte(nil), b...), to: addr})
	return len(b), nil
}

const mSearch = "M-SEARCH * HTTP/1.1\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"MAN: \"ssdp:discover\"\r\n" +
	"MX: 2\r\n" +
	"ST: ssdp:all\r\n\r\n"

func TestResponder_AnswersSearch(t *testing.T) {
	r := NewResponder(testIdentity())
	w := &captureWriter{}
	from := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 7), Port: 50123}

	if err := r.Handle([]byte(mSearch), from, w); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(w.packets) != 1 {
		t.Fatalf("sent %d responses, want 1", len(w.packets))
	}
	if w.packets[0].to.String() != from.String() {
		t.Errorf("response sent to %s, want %s", w.packets[0].to, from)
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(w.packets[0].data)), nil)
	if err != nil {
		t.Fatalf("response does not parse: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	want := map[string]string{
		"Cache-Control": "max-age=1800",
		"Location":      "http://192.168.1.50:80/json",
		"Server":        "WLED/0.15.0 UPnP/1.1",
		"St":            DeviceType,
		"Usn":           "uuid:WLED-441d64f40000",
		"X-Wled-Name":   "HomeAssistantBridge",
		"X-Wled-Leds":   "3",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
	if _, ok := resp.Header["Ext"]; !ok {
		t.Error("EXT header missing")
	}
}

func TestIsSearch(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{name: "ssdp_all", data: mSearch, want: true},
		{name: "rootdevice", data: strings.Replace(mSearch, "ssdp:all", "upnp:rootdevice", 1), want: true},
		{name: "basic_device", data: strings.Replace(mSearch, "ssdp:all", DeviceType, 1), want: true},
		{name: "no_st", data: strings.Replace(mSearch, "ST: ssdp:all\r\n", "", 1), want: true},
		{name: "no_trailing_blank_line", data: strings.TrimSuffix(mSearch, "\r\n"), want: true},
		{name: "unrelated_target", data: strings.Replace(mSearch, "ssdp:all", "urn:dial-multiscreen-org:service:dial:1", 1), want: false},
		{name: "notify", data: "NOTIFY * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nNTS: ssdp:alive\r\n\r\n", want: false},
		{name: "missing_man", data: strings.Replace(mSearch, "MAN: \"ssdp:discover\"\r\n", "", 1), want: false},
		{name: "garbage", data: "\x00\x01\x02hello", want: false},
		{name: "empty", data: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSearch([]byte(tt.data)); got != tt.want {
				t.Errorf("IsSearch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponder_IgnoresUnrelated(t *testing.T) {
	r := NewResponder(testIdentity())
	w := &captureWriter{}
	from := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 7), Port: 1900}

	if err := r.Handle([]byte("NOTIFY * HTTP/1.1\r\nNTS: ssdp:alive\r\n\r\n"), from, w); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(w.packets) != 0 {
		t.Errorf("sent %d responses, want 0", len(w.packets))
	}
}

func TestResponder_ServeLoopback(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	r := NewResponder(testIdentity())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Serve(ctx, conn)

	client, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("client listen: %v", err)
	}
	defer client.Close()

	client.WriteTo([]byte("garbage"), conn.LocalAddr())
	client.WriteTo([]byte(mSearch), conn.LocalAddr())

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("no response: %v", err)
	}
	if !bytes.Equal(buf[:n], r.response) {
		t.Errorf("unexpected response %q", buf[:n])
	}

	// Only one response for one search.
	client.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := client.ReadFrom(buf); err == nil {
		t.Error("unexpected second response")
	}
}

type fakeRegistration struct {
	shutdown bool
}

func (f *fakeRegistration) Shutdown() { f.shutdown = true }

func TestAnnouncer_RegistersRecord(t *testing.T) {
	id := testIdentity()
	a := NewAnnouncer(id)
	reg := &fakeRegistration{}

	var gotInstance, gotService, gotHost string
	var gotPort int
	var gotIPs, gotText []string
	a.register = func(instance, service, domain string, port int, host string, ips []string, text []string, _ []net.Interface) (registration, error) {
		gotInstance, gotService, gotHost, gotPort = instance, service, host, port
		gotIPs, gotText = ips, text
		return reg, nil
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if gotInstance != "HomeAssistantBridge" || gotService != "_wled._tcp" || gotPort != 80 {
		t.Errorf("registered %q %q port %d", gotInstance, gotService, gotPort)
	}
	if gotHost != "wled-441d64f40000" {
		t.Errorf("host = %q", gotHost)
	}
	if len(gotIPs) != 1 || gotIPs[0] != "192.168.1.50" {
		t.Errorf("ips = %v", gotIPs)
	}

	text := strings.Join(gotText, ";")
	for _, want := range []string{"id=441d64f40000", "mac=44:1D:64:F4:00:00", "ip=192.168.1.50", "fw=Majon3z", "arch=Made by", "json=true", "name=HomeAssistantBridge", "leds=3"} {
		if !strings.Contains(text, want) {
			t.Errorf("TXT records %q missing %q", text, want)
		}
	}

	a.Stop()
	if !reg.shutdown {
		t.Error("Stop should shut down the registration")
	}
}

func TestAnnouncer_FailureIsNotFatal(t *testing.T) {
	a := NewAnnouncer(testIdentity())
	a.register = func(string, string, string, int, string, []string, []string, []net.Interface) (registration, error) {
		return nil, errors.New("no multicast interface")
	}

	if err := a.Start(); err == nil {
		t.Fatal("Start should report the failure")
	}
	// Stop after a failed start must be a no-op.
	a.Stop()
}
