package cmd

// version is overridden at startup by the root command, which receives the
// build-time value via -ldflags.
var version = "dev"

// SetVersion records the binary's version for display and API metadata.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Version returns the binary's version.
func Version() string {
	return version
}
