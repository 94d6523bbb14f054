//go:build !zonerelease

package zone

// debugBuild enables the leak assertion in Shutdown, the arena alignment
// assertion in New and Config.VerifyEachCall. Build with -tags zonerelease
// to compile them out.
const debugBuild = true
