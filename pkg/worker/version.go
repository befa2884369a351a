package worker

// Version information for the worker module.
const (
	// Version is the current version of the worker module.
	Version = "0.3.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "0.3.0"
)
