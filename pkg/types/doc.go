/*
Package types defines the wire protocol and job bookkeeping shared by the
coordinator and worker.

# Frame and Control

Frame is the unit of transport on every channel (job, backend, heartbeat):
an optional sender identity plus seven byte-string fields, tagged with a
Control byte that says what the frame means (READY, JOB_ACK,
JOB_PROCESSING, JOB_END/JOB_FAILED, NOTICE, TRANSFER_START/END,
COORDINATION_*). Control.IsTerminal reports whether a control byte ends a
job's lifecycle on a given worker.

# JobItem

JobItem is the operator-submitted unit of work: a Verb plus a flat Args
map, kept as map[string]interface{} rather than a concrete struct so the
coordinator can route and fingerprint jobs without knowing every
component's argument shape. Its custom MarshalJSON/UnmarshalJSON fold Args
into the same top-level JSON object as the named fields (job_id, verb,
targets, ...), matching the flat wire shape operators write by hand in
orchestration documents.

Fingerprint computes a JobItem's SHA3-224 content fingerprint after
stripping its id fields, so two submissions with identical verb/Args
content fingerprint identically regardless of when they were submitted;
FingerprintBytes does the same for raw file content (COPY/ADD's
file_sha3_224). Both rely on canonicalJSON's key-sorted serialization so
map iteration order never affects the digest.

# JobRecord and WorkerRecord

JobRecord is the coordinator's per-job_id bookkeeping entry, aggregating
Info/Stdout/Stderr/Success/Failed and timing across every worker a job was
dispatched to. WorkerRecord is the coordinator's per-identity liveness
entry; Live reports whether its last heartbeat has not yet expired.
*/
package types
