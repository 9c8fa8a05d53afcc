// Package common holds service-wide constants and logger setup shared by
// all binaries.
package common

// PackageName identifies the service in logs and metrics.
const PackageName = "whitelist-backend"

// Version is set at build time via -ldflags.
var Version = "dev"
