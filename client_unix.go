//go:build !windows

package waitsampling

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
)

func dial(addr string) (net.Conn, error) {
	ua := &net.UnixAddr{
		Name: addr,
		Net:  "unix",
	}
	conn, err := net.DialUnix("unix", nil, ua)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SocketPath returns the endpoint a collector running in process pid
// serves its readout API on.
func SocketPath(pid int) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("waitsampler-%d.sock", pid))
}

// DefaultSocketPath locates the readout socket of the collector running
// in process pid, or returns "" if none is found.
func DefaultSocketPath(pid int) string {
	paths, err := filepath.Glob(fmt.Sprintf("%s/waitsampler-%d*.sock", os.TempDir(), pid))
	if err != nil || len(paths) == 0 {
		return ""
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] > paths[j] })
	return paths[0]
}
