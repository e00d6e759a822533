package monitorcheck

import "github.com/nick2bad4u/uptime-watcher/internal/monitorcheck/httpclient"

// Dependencies bundles the shared resources monitor services need,
// assembled once at startup and passed to NewStrategyRegistry.
type Dependencies struct {
	HTTPClient *httpclient.Client
}
