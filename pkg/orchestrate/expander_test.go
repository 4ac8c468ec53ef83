package orchestrate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDocument = `
- targets: ["w1", "w2"]
  args:
    foo: bar
  jobs:
    - RUN: echo hello
    - ARG: greeting=hi
    - - RUN: echo nested-one
      - RUN: echo nested-two
- jobs:
    - COPY: /src/file.txt /dst/file.txt
`

func TestExpandProducesOneParentPerEntry(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	require.NoError(t, err)
	require.Len(t, doc, 2)

	jobs, err := Expand(doc, nil, nil)
	require.NoError(t, err)

	// entry 1: ARG (from args) + RUN + ARG + RUN + RUN = 5 jobs
	// entry 2: COPY = 1 job
	require.Len(t, jobs, 6)

	for _, j := range jobs[:5] {
		require.Equal(t, jobs[0].ParentID, j.ParentID)
	}
	require.NotEqual(t, jobs[0].ParentID, jobs[5].ParentID)
}

func TestExpandFlattensNestedJobLists(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	require.NoError(t, err)

	jobs, err := Expand(doc, nil, nil)
	require.NoError(t, err)

	var runCommands []string
	for _, j := range jobs {
		if j.Verb == "RUN" {
			runCommands = append(runCommands, j.Args["command"].(string))
		}
	}
	require.ElementsMatch(t, []string{"echo hello", "echo nested-one", "echo nested-two"}, runCommands)
}

func TestExpandTargetOverrideReplacesEntryTargets(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	require.NoError(t, err)

	jobs, err := Expand(doc, []string{"w9"}, nil)
	require.NoError(t, err)
	for _, j := range jobs {
		require.Equal(t, []string{"w9"}, j.Targets)
	}
}

func TestVerbArgsCopySplitsFromTo(t *testing.T) {
	args := verbArgs("COPY", "/src/file.txt /dst/file.txt")
	require.Equal(t, "/src/file.txt", args["from"])
	require.Equal(t, "/dst/file.txt", args["to"])
}

func TestVerbArgsArgParsesKeyValuePairs(t *testing.T) {
	args := verbArgs("ARG", "foo=bar baz=qux")
	values := args["values"].(map[string]interface{})
	require.Equal(t, "bar", values["foo"])
	require.Equal(t, "qux", values["baz"])
}
