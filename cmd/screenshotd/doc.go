// Package main assembles the screenshot service binary: configuration,
// logging, the browser pool, storage, quota accounting, billing sync, and the
// HTTP API.
package main
