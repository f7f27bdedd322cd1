package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{
	"action": "completed",
	"workflow_run": {"conclusion": "failure", "run_number": 17, "pull_requests": [{"number": 4}]},
	"repository": {"private": false, "topics": null}
}`

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  Predicate
	}{
		{"action=opened", Predicate{Path: "action", Operator: OpEqual, Value: "opened"}},
		{" action = opened ", Predicate{Path: "action", Operator: OpEqual, Value: "opened"}},
		{"action!=closed", Predicate{Path: "action", Operator: OpNotEqual, Value: "closed"}},
		{"sender exists", Predicate{Path: "sender", Operator: OpExists}},
	}

	for _, tc := range cases {
		got, err := Parse(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}

	re, err := Parse("workflow_run.conclusion=~^fail")
	require.NoError(t, err)
	assert.Equal(t, OpRegex, re.Operator)
	assert.Equal(t, "^fail", re.Value)
	assert.Equal(t, "workflow_run.conclusion=~^fail", re.String())
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "   ", "=x", "!=x", "action=", "action=~", "action=~(", "action", "action missing"} {
		_, err := Parse(input)
		assert.Error(t, err, input)
	}

	_, err := ParseAll([]string{"action=opened", "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestMatch(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"action=completed", true},
		{"action=opened", false},
		{"action!=opened", true},
		{"action!=completed", false},
		{"missing!=x", true},
		{"workflow_run.conclusion=~^fail", true},
		{"workflow_run.conclusion=~^succ", false},
		{"workflow_run.run_number=17", true},
		{"workflow_run.pull_requests.0.number=4", true},
		{"workflow_run.pull_requests.1.number exists", false},
		{"repository.private=false", true},
		{"repository.topics=null", true},
		{"repository exists", true},
		{"repository=x", false},
	}

	for _, tc := range cases {
		p, err := Parse(tc.input)
		require.NoError(t, err, tc.input)
		got, err := p.Match([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.input)
	}
}

func TestMatchAll(t *testing.T) {
	ok, err := MatchAll([]byte(payload), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	preds, err := ParseAll([]string{"action=completed", "workflow_run.conclusion=failure"})
	require.NoError(t, err)
	ok, err = MatchAll([]byte(payload), preds)
	require.NoError(t, err)
	assert.True(t, ok)

	preds, err = ParseAll([]string{"action=completed", "workflow_run.conclusion=success"})
	require.NoError(t, err)
	ok, err = MatchAll([]byte(payload), preds)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = MatchAll([]byte("{"), preds)
	assert.Error(t, err)
}
