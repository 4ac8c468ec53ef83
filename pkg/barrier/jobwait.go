package barrier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/components"
	"github.com/directord/directord/pkg/transport"
	"github.com/directord/directord/pkg/types"
)

// PollInterval is how often a Responder re-checks its local cache for a
// fingerprint's terminal state.
const PollInterval = 250 * time.Millisecond

// Timeout bounds how long a Responder will wait for a fingerprint to reach
// a terminal state before reporting coordination failure.
const Timeout = 10 * time.Minute

// noticePayload is the JSON body carried in a coordination frame's Data
// field; the peer identity travels in Frame.Command instead, set by the
// coordinator's relay.
type noticePayload struct {
	Fingerprint string `json:"fingerprint"`
}

// Requester drives one JOB_WAIT job: it owns a freshly opened, short-lived
// backend channel (the "ephemeral" channel from the wire contract) used
// only for this barrier, notifies every target, and blocks until each has
// replied ack or any has replied failed.
type Requester struct {
	Channel transport.ClientChannel
	Log     zerolog.Logger
}

// Wait notifies every target with fingerprint and blocks until the barrier
// resolves: nil once every target acks, or an error on the first failure,
// a peer mismatch, or context cancellation.
func (r *Requester) Wait(ctx context.Context, fingerprint string, targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("barrier: JOB_WAIT requires at least one target")
	}

	payload, err := json.Marshal(noticePayload{Fingerprint: fingerprint})
	if err != nil {
		return fmt.Errorf("barrier: encoding notice: %w", err)
	}

	for _, target := range targets {
		notice := types.Frame{Control: types.ControlCoordinationNotice, Command: target, Data: payload}
		if err := r.Channel.Send(ctx, notice); err != nil {
			return fmt.Errorf("barrier: notifying %s: %w", target, err)
		}
	}

	pending := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		pending[target] = struct{}{}
	}

	for len(pending) > 0 {
		frame, err := r.Channel.Recv(ctx)
		if err != nil {
			return fmt.Errorf("barrier: waiting on %d peer(s): %w", len(pending), err)
		}

		switch frame.Control {
		case types.ControlCoordinationAck:
			delete(pending, frame.Command)
		case types.ControlCoordinationFailed:
			return fmt.Errorf("barrier: target %s did not reach a terminal state for %s within %s", frame.Command, fingerprint, Timeout)
		}
	}

	r.Log.Debug().Str("fingerprint", fingerprint).Strs("targets", targets).Msg("JOB_WAIT barrier satisfied")
	return nil
}

// Responder answers coordination notices relayed to this worker: it polls
// its own cache for the named fingerprint's terminal state and replies ack
// or failed on the same channel the notice arrived on.
type Responder struct {
	Cache   cache.Cache
	Channel transport.ClientChannel
	Log     zerolog.Logger
}

// Handle processes one coordination_notice frame. requester is the peer
// identity to reply to, carried in the relayed frame's Command field.
func (r *Responder) Handle(ctx context.Context, notice types.Frame) {
	requester := notice.Command
	var payload noticePayload
	if err := json.Unmarshal(notice.Data, &payload); err != nil {
		r.Log.Warn().Err(err).Msg("JOB_WAIT notice with unparsable payload")
		return
	}

	deadline := time.Now().Add(Timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		if _, ok := r.terminalState(payload.Fingerprint); ok {
			r.reply(ctx, requester, payload.Fingerprint, true)
			return
		}
		if time.Now().After(deadline) {
			r.reply(ctx, requester, payload.Fingerprint, false)
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Responder) terminalState(fingerprint string) (types.TerminalState, bool) {
	entry, ok, err := r.Cache.Get(cache.JobStateKey(fingerprint))
	if err != nil || !ok {
		return "", false
	}
	return types.TerminalState(entry.Value), true
}

// EphemeralOpener opens the short-lived backend connection a JOB_WAIT job
// uses for its one barrier, closed when the job returns.
type EphemeralOpener interface {
	Open(ctx context.Context) (transport.ClientChannel, error)
}

// JobWaitComponent is the JOB_WAIT verb: it opens an ephemeral backend
// channel via Opener and runs a Requester barrier across job.Args's
// "sha" and "identities".
type JobWaitComponent struct {
	Opener EphemeralOpener
}

func (c *JobWaitComponent) Verb() string      { return "JOB_WAIT" }
func (c *JobWaitComponent) Cacheable() bool   { return false }
func (c *JobWaitComponent) RequiresLock() bool { return false }

func (c *JobWaitComponent) Execute(ctx context.Context, ec *components.ExecContext, job types.JobItem) (components.Result, error) {
	fingerprint, _ := job.Args["sha"].(string)
	if fingerprint == "" {
		return components.Result{}, fmt.Errorf("barrier: JOB_WAIT job %s requires sha", job.JobID)
	}
	rawIdentities, _ := job.Args["identities"].([]interface{})
	if len(rawIdentities) == 0 {
		return components.Result{}, fmt.Errorf("barrier: JOB_WAIT job %s requires identities", job.JobID)
	}
	targets := make([]string, 0, len(rawIdentities))
	for _, v := range rawIdentities {
		targets = append(targets, fmt.Sprintf("%v", v))
	}

	channel, err := c.Opener.Open(ctx)
	if err != nil {
		return components.Result{}, fmt.Errorf("barrier: JOB_WAIT job %s opening ephemeral channel: %w", job.JobID, err)
	}
	defer channel.Close()

	requester := &Requester{Channel: channel, Log: ec.Log}
	if err := requester.Wait(ctx, fingerprint, targets); err != nil {
		return components.Result{}, fmt.Errorf("barrier: JOB_WAIT job %s: %w", job.JobID, err)
	}
	return components.Result{Success: true, Info: []byte(fmt.Sprintf("barrier satisfied for %s across %d target(s)", fingerprint, len(targets)))}, nil
}

func (r *Responder) reply(ctx context.Context, requester, fingerprint string, success bool) {
	control := types.ControlCoordinationAck
	if !success {
		control = types.ControlCoordinationFailed
	}
	payload, _ := json.Marshal(noticePayload{Fingerprint: fingerprint})
	if err := r.Channel.Send(ctx, types.Frame{Control: control, Command: requester, Data: payload}); err != nil {
		r.Log.Warn().Err(err).Str("requester", requester).Msg("failed to reply to JOB_WAIT notice")
	}
}
