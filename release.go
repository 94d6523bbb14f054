//go:build zonerelease

package zone

const debugBuild = false
