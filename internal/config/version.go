package config

// Build metadata, set with -ldflags "-X github.com/edirooss/slowdog/internal/config.Version=...".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)
