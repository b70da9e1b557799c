package types

// Version is the application version, overridable via -ldflags at build time.
var Version = "0.1.0"

// AppName is used in health responses and notification footers.
const AppName = "drover"
