// Package health provides the pluggable check strategies (HTTP, TCP, exec)
// that back the WAIT verb's polling modes, plus the Status/Config hysteresis
// tracker used to decide when a target is considered reachable.
package health
