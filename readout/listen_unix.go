//go:build !windows

package readout

import (
	"net"
	"os"
)

// listen binds a unix domain socket at path, replacing a stale socket
// file left behind by a previous run.
func listen(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	return net.Listen("unix", path)
}
