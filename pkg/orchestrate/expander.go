package orchestrate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/directord/directord/pkg/types"
)

// Entry is one element of an orchestration document: a set of targets, an
// optional args map merged into those targets' cached args before the
// entry's jobs run, and the jobs themselves.
type Entry struct {
	Targets []string               `yaml:"targets"`
	Args    map[string]interface{} `yaml:"args"`
	Jobs    []yaml.Node            `yaml:"jobs"`
}

// Document is a full orchestration file: a list of entries, each expanded
// under its own parent id.
type Document []Entry

// ParseDocument decodes a YAML orchestration document.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("orchestrate: parsing document: %w", err)
	}
	return doc, nil
}

// Expand turns a Document into the flat, dispatch-ready JobItem list. Each
// entry gets its own parent id; an entry's args (if any) are emitted as a
// leading ARG job under that same parent so later jobs in the entry can
// interpolate them. targetOverride, when non-empty, replaces every entry's
// own targets list, matching the original's defined_targets override.
func Expand(doc Document, targetOverride []string, restrict []string) ([]types.JobItem, error) {
	var jobs []types.JobItem

	for _, entry := range doc {
		parentID := uuid.NewString()
		targets := entry.Targets
		if len(targetOverride) > 0 {
			targets = targetOverride
		}

		if len(entry.Args) > 0 {
			argJob, err := buildJob("ARG", parentID, targets, restrict, map[string]interface{}{
				"values": entry.Args,
			})
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, argJob)
		}

		flat, err := flattenJobs(entry.Jobs)
		if err != nil {
			return nil, err
		}

		for _, vc := range flat {
			job, err := buildJob(vc.verb, parentID, targets, restrict, verbArgs(vc.verb, vc.command))
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
	}

	return jobs, nil
}

type verbCommand struct {
	verb    string
	command string
}

// flattenJobs walks an entry's Jobs list, which the wire format allows to
// nest (a job list entry may itself be a list of jobs), recursively
// flattening it into a single ordered sequence of verb/command pairs.
func flattenJobs(nodes []yaml.Node) ([]verbCommand, error) {
	var out []verbCommand
	for _, node := range nodes {
		flattened, err := flattenNode(&node)
		if err != nil {
			return nil, err
		}
		out = append(out, flattened...)
	}
	return out, nil
}

func flattenNode(node *yaml.Node) ([]verbCommand, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		var out []verbCommand
		for i := range node.Content {
			flattened, err := flattenNode(node.Content[i])
			if err != nil {
				return nil, err
			}
			out = append(out, flattened...)
		}
		return out, nil
	case yaml.MappingNode:
		var out []verbCommand
		for i := 0; i+1 < len(node.Content); i += 2 {
			verb := strings.ToUpper(node.Content[i].Value)
			var command string
			if err := node.Content[i+1].Decode(&command); err != nil {
				return nil, fmt.Errorf("orchestrate: job %q value must be a string: %w", verb, err)
			}
			out = append(out, verbCommand{verb: verb, command: command})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("orchestrate: unsupported job node kind %v", node.Kind)
	}
}

// verbArgs builds the per-verb Args map from the orchestration document's
// single execution string, the wire-format convention every builtin
// component's verb-specific fields are derived from.
func verbArgs(verb, command string) map[string]interface{} {
	switch verb {
	case "RUN":
		return map[string]interface{}{"command": command}
	case "COPY", "ADD":
		fields := strings.Fields(command)
		args := map[string]interface{}{}
		if len(fields) > 0 {
			args["from"] = fields[0]
		}
		if len(fields) > 1 {
			args["to"] = fields[1]
		}
		return args
	case "ARG", "ENV":
		values := map[string]interface{}{}
		for _, pair := range strings.Fields(command) {
			if k, v, ok := strings.Cut(pair, "="); ok {
				values[k] = v
			}
		}
		return map[string]interface{}{"values": values}
	case "CACHEFILE":
		return map[string]interface{}{"file": command}
	case "CACHEEVICT":
		return map[string]interface{}{"tag": command}
	case "WORKDIR":
		return map[string]interface{}{"path": command}
	case "WAIT":
		if seconds, err := strconv.Atoi(command); err == nil {
			return map[string]interface{}{"seconds": seconds}
		}
		if strings.HasPrefix(command, "http://") || strings.HasPrefix(command, "https://") {
			return map[string]interface{}{"url": command}
		}
		if host, port, ok := strings.Cut(command, ":"); ok && host != "" && port != "" && !strings.ContainsAny(command, " /") {
			return map[string]interface{}{"address": command}
		}
		return map[string]interface{}{"command": command}
	case "DNF":
		fields := strings.Fields(command)
		action := "install"
		packages := fields
		if len(fields) > 0 {
			switch fields[0] {
			case "install", "remove", "update", "upgrade":
				action = fields[0]
				packages = fields[1:]
			}
		}
		pkgs := make([]interface{}, 0, len(packages))
		for _, p := range packages {
			pkgs = append(pkgs, p)
		}
		return map[string]interface{}{"action": action, "packages": pkgs}
	case "SERVICE":
		fields := strings.Fields(command)
		args := map[string]interface{}{}
		if len(fields) > 0 {
			args["name"] = fields[0]
		}
		if len(fields) > 1 {
			args["action"] = fields[1]
		}
		return args
	case "QUERY":
		return map[string]interface{}{"key": command}
	default:
		return map[string]interface{}{"value": command}
	}
}

// buildJob assembles and fingerprints a single JobItem.
func buildJob(verb, parentID string, targets, restrict []string, args map[string]interface{}) (types.JobItem, error) {
	job := types.JobItem{
		JobID:    uuid.NewString(),
		Verb:     verb,
		ParentID: parentID,
		Targets:  targets,
		Restrict: restrict,
		Args:     args,
	}
	fingerprint, err := types.Fingerprint(job)
	if err != nil {
		return types.JobItem{}, fmt.Errorf("orchestrate: fingerprinting %s job: %w", verb, err)
	}
	job.JobSHA3224 = fingerprint
	parentFingerprint, err := types.Fingerprint(types.JobItem{Verb: "PARENT", JobID: parentID})
	if err != nil {
		return types.JobItem{}, err
	}
	job.ParentSHA3224 = parentFingerprint
	return job, nil
}
