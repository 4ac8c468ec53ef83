// Package coordinator implements the Directord coordinator: it accepts job
// submissions over a local management socket, fingerprints and dispatches
// them to live workers, tracks job lifecycle from the worker frames it
// receives back, and relays JOB_WAIT coordination notices and chunked file
// transfers between workers over the backend channel.
package coordinator
