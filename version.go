package loom

// Version is the loom release.
const Version = "0.1.0"
