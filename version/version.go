package version

// Version is the current release of the sosguard app
const Version = "0.1.0"
