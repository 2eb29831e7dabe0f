package utils

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidateAddr validates a host:port listen address without binding to it.
// Port 0 is accepted and means "any free port".
func ValidateAddr(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return errors.New("addr is required")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("split addr %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("addr %q: invalid port %q", addr, port)
	}
	return nil
}
