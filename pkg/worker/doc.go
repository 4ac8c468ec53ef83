// Package worker implements the Directord worker agent: it connects to a
// coordinator's job, backend and heartbeat channels, executes dispatched
// JobItems against the registered components, and reports terminal state
// back over the job channel.
package worker
