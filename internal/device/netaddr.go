package device

import "net"

// LocalIP returns the address of the interface used for outbound traffic.
// No packet is sent: dialing UDP only selects a route.
// Falls back to loopback when no route exists.
func LocalIP() net.IP {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return net.IPv4(127, 0, 0, 1)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return net.IPv4(127, 0, 0, 1)
	}
	return addr.IP
}
