//go:build windows

package waitsampling

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

func dial(addr string) (net.Conn, error) {
	timeout := time.Second
	return winio.DialPipe(addr, &timeout)
}

// SocketPath returns the endpoint a collector running in process pid
// serves its readout API on.
func SocketPath(pid int) string {
	return fmt.Sprintf(`\\.\pipe\waitsampler-%d`, pid)
}

// DefaultSocketPath locates the readout endpoint of the collector running
// in process pid. Named pipes have a deterministic name, so no discovery
// is needed on Windows.
func DefaultSocketPath(pid int) string {
	return SocketPath(pid)
}
