//go:build windows

package readout

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// listen binds a named pipe at path.
func listen(path string) (net.Listener, error) {
	return winio.ListenPipe(path, nil)
}
