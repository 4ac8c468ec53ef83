// Package barrier implements the two cross-worker coordination verbs:
// JOB_WAIT (block until a fingerprint reaches a terminal state on a named
// set of peers) and QUERY_WAIT (block until a QUERY answer has been
// rebroadcast into the local cache). JOB_WAIT needs a second party's
// cooperation, so the package splits into a Requester (the worker running
// the JOB_WAIT job) and a Responder (every worker's standing handler for
// coordination notices relayed through the coordinator's backend channel).
package barrier
