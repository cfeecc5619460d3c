// Package server implements the websocket status feed.
//
// The feed server observes a connected focuser session and streams one
// JSON status message to every subscriber per poll tick. Subscribers
// connect to /ws; the latest snapshot is also available with a plain
// GET /status. When announcement is enabled the feed registers itself
// on the local network as a "_dreamfocus._tcp" mDNS service.
//
// The feed is strictly one-way telemetry: inbound websocket messages
// are read and discarded, and no command path exists on this surface.
// A subscriber that stops draining its connection is dropped so the
// poll loop is never held up by a slow peer.
package server
