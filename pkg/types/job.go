package types

import (
	"crypto/sha3"
	"encoding/json"
	"sort"
	"time"
)

// JobItem describes one unit of work submitted by an operator and routed to
// one or more worker agents.
type JobItem struct {
	JobID          string `json:"job_id,omitempty"`
	JobSHA3224     string `json:"job_sha3_224,omitempty"`
	Verb           string `json:"verb"`
	ParentID       string `json:"parent_id,omitempty"`
	ParentSHA3224  string `json:"parent_sha3_224,omitempty"`

	Targets            []string `json:"targets,omitempty"`
	Restrict           []string `json:"restrict,omitempty"`
	RunOnce            bool     `json:"run_once,omitempty"`
	SkipCache          bool     `json:"skip_cache,omitempty"`
	Timeout            int      `json:"timeout,omitempty"`
	ParentAsyncBypass  bool     `json:"parent_async_bypass,omitempty"`
	ReturnRaw          bool     `json:"return_raw,omitempty"`

	// Verb-specific payload. Kept as a raw map so the coordinator and
	// worker can pass verbs through without knowing every component's
	// argument shape; components decode their own keys out of this map.
	Args map[string]interface{} `json:"-"`
}

// DefaultTimeout is applied when a JobItem does not specify one.
const DefaultTimeout = 600

// EffectiveTimeout returns the JobItem's configured timeout, or
// DefaultTimeout when unset.
func (j *JobItem) EffectiveTimeout() time.Duration {
	t := j.Timeout
	if t <= 0 {
		t = DefaultTimeout
	}
	return time.Duration(t) * time.Second
}

// jobItemAlias avoids infinite recursion when JobItem implements custom
// (Un)MarshalJSON to fold Args in and out of the top-level object.
type jobItemAlias JobItem

// MarshalJSON flattens Args into the top-level JSON object alongside the
// named fields, mirroring the open-dictionary JobItem shape used on the
// wire.
func (j JobItem) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(jobItemAlias(j))
	if err != nil {
		return nil, err
	}
	if len(j.Args) == 0 {
		return base, nil
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range j.Args {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes named fields normally and stashes any remaining
// top-level keys into Args.
func (j *JobItem) UnmarshalJSON(data []byte) error {
	var alias jobItemAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*j = JobItem(alias)

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]struct{}{
		"job_id": {}, "job_sha3_224": {}, "verb": {}, "parent_id": {},
		"parent_sha3_224": {}, "targets": {}, "restrict": {}, "run_once": {},
		"skip_cache": {}, "timeout": {}, "parent_async_bypass": {},
		"return_raw": {},
	}
	args := make(map[string]interface{})
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		args[k] = v
	}
	if len(args) > 0 {
		j.Args = args
	}
	return nil
}

// Fingerprint computes the deterministic SHA3-224 fingerprint of a JobItem
// after stripping parent_*/job_* id fields, so two submissions with
// identical normalized content fingerprint identically.
func Fingerprint(job JobItem) (string, error) {
	job.JobID = ""
	job.JobSHA3224 = ""
	job.ParentID = ""
	job.ParentSHA3224 = ""

	normalized, err := canonicalJSON(job)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum224(normalized)
	return hexEncode(sum[:]), nil
}

// FingerprintBytes computes a SHA3-224 fingerprint over arbitrary bytes,
// used for file content integrity (file_sha3_224).
func FingerprintBytes(data []byte) string {
	sum := sha3.Sum224(data)
	return hexEncode(sum[:])
}

// canonicalJSON produces a stable byte representation of v: map keys in
// JobItem.Args are sorted so two semantically-identical JobItems serialize
// identically regardless of map iteration order.
func canonicalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return marshalCanonical(generic)
}

func marshalCanonical(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := json.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil
	case []interface{}:
		out := []byte("[")
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			ib, err := marshalCanonical(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ib...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(val)
	}
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

// TerminalState is the cache-recorded terminal outcome of a fingerprinted
// job on a single worker.
type TerminalState string

const (
	TerminalEnd    TerminalState = "END"
	TerminalFailed TerminalState = "FAILED"
)

// JobRecord is the coordinator-side bookkeeping entry for one job_id,
// aggregated across every worker it was dispatched to.
type JobRecord struct {
	JobID              string              `json:"job_id"`
	Accepted           bool                `json:"accepted"`
	Processing         bool                `json:"processing"`
	Nodes              []string            `json:"nodes"`
	Info               map[string]string   `json:"info"`
	Stdout             map[string]string   `json:"stdout"`
	Stderr             map[string]string   `json:"stderr"`
	Success            []string            `json:"success"`
	Failed             []string            `json:"failed"`
	Transfers          []string            `json:"transfers,omitempty"`
	ParentJobID        string              `json:"parent_job_id"`
	TaskSHA3224        string              `json:"task_sha3_224"`
	JobDefinition      JobItem             `json:"job_definition"`
	CreateTime         time.Time           `json:"create_time"`
	StartTime          time.Time           `json:"start_time"`
	ExecutionTime      map[string]float64  `json:"execution_time"`
	TotalRoundtripTime map[string]float64  `json:"total_roundtrip_time"`
}

// NewJobRecord creates an empty, initialized JobRecord for job.
func NewJobRecord(job JobItem) *JobRecord {
	return &JobRecord{
		JobID:              job.JobID,
		ParentJobID:        job.ParentID,
		TaskSHA3224:        job.JobSHA3224,
		JobDefinition:      job,
		Info:               make(map[string]string),
		Stdout:             make(map[string]string),
		Stderr:             make(map[string]string),
		ExecutionTime:      make(map[string]float64),
		TotalRoundtripTime: make(map[string]float64),
	}
}

// WorkerRecord is the coordinator-side liveness entry for one worker
// identity.
type WorkerRecord struct {
	Identity    string    `json:"identity"`
	Expiry      time.Time `json:"expiry"`
	Version     string    `json:"version,omitempty"`
	HostUptime  string    `json:"host_uptime,omitempty"`
	AgentUptime string    `json:"agent_uptime,omitempty"`
	MachineID   string    `json:"machine_id,omitempty"`
}

// Live reports whether the worker's last heartbeat has not yet expired.
func (w *WorkerRecord) Live(now time.Time) bool {
	return !now.After(w.Expiry)
}
