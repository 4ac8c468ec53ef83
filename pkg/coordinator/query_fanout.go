package coordinator

import (
	"github.com/google/uuid"

	"github.com/directord/directord/pkg/types"
)

// fanoutQuery implements spec §4.3's QUERY fan-out: a QUERY job's answer
// from one worker is wrapped into a synthetic ARG job and re-dispatched to
// every live worker, so each learns every other's answer under
// args["query"][answering-identity].
func (co *Coordinator) fanoutQuery(identity string, info []byte) {
	answer, err := decodeAnswer(info)
	if err != nil {
		co.Log.Warn().Err(err).Str("identity", identity).Msg("decoding QUERY answer for fan-out")
		return
	}

	jobID := uuid.NewString()
	job := types.JobItem{
		JobID:    jobID,
		ParentID: jobID,
		Verb:     "ARG",
		Args: map[string]interface{}{
			"values": map[string]interface{}{
				"query": map[string]interface{}{
					identity: answer,
				},
			},
			"extend_args": true,
		},
	}

	fingerprint, err := types.Fingerprint(job)
	if err == nil {
		job.JobSHA3224 = fingerprint
	}

	select {
	case co.jobCh <- job:
	default:
		co.Log.Warn().Str("identity", identity).Msg("QUERY fan-out queue full, dropping")
	}
}
