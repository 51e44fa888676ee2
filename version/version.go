package version

// Version is set at build time via -ldflags "-X github.com/nlpforge/bpetrain/version.Version=...".
var Version = "0.0.0"
