package log

// Version information for the log package.
const (
	// Version is the current version of the log package.
	Version = "1.1.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.1.0"
)
