package build

// Release identifies which build variant this binary was compiled as. It
// governs whether Critical and Severe panic, and feeds Var/Select for
// environment-dependent constants (timeouts, retry counts, disk-sync
// behavior) throughout the resource pipeline.
var Release = "standard"

// DEBUG is set at compile time for debug builds. When true, Critical and
// Severe panic instead of merely logging, so invariant violations surface
// immediately in development and CI rather than limping along in production.
var DEBUG = false
