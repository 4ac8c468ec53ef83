// Package orchestrate expands a YAML orchestration document into the flat
// list of JobItems the coordinator dispatches, assigning one parent id per
// document entry and flattening nested job lists, per spec.md §6's
// orchestration document format.
package orchestrate
