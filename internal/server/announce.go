package server

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/dreamfocus/internal/logging"
	"github.com/muurk/dreamfocus/internal/version"
)

const (
	// ServiceType is the mDNS service type the status feed advertises as.
	ServiceType = "_dreamfocus._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// Announcer advertises a running status feed over mDNS so monitor
// clients on the local network can find it without configuration.
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers the feed service on all interfaces. The returned
// announcer must be shut down when the feed stops.
func Announce(port int) (*Announcer, error) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "dreamfocus"
	}
	instance := fmt.Sprintf("dreamfocus on %s", host)

	txt := []string{
		"path=/ws",
		fmt.Sprintf("version=%s", version.Version),
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Announcing status feed via mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)

	return &Announcer{server: server}, nil
}

// Shutdown withdraws the mDNS registration.
func (a *Announcer) Shutdown() {
	if a.server != nil {
		a.server.Shutdown()
		logging.Debug("mDNS announcement withdrawn")
	}
}
