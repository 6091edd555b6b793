// Package buildinfo carries build-time version metadata.
package buildinfo

// Version is stamped at build time via -ldflags "-X". The default marks
// a from-source build.
var Version = "dev"
