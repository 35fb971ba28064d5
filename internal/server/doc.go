// Package server assembles the appdock service: catalog, action log,
// installed-state provider, library engine, and the HTTP/WebSocket surface.
package server
