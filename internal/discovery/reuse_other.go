//go:build !unix

package discovery

import "syscall"

// reuseAddr is a no-op where the unix socket options are unavailable.
func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
