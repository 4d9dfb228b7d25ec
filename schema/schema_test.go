package schema

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFact = New("Fact", "A single fact.",
	StringField("fact", "The fact"),
	StringField("source", "Where it came from"),
	NumberField("confidence", "Confidence 0-1").Unit(),
)

var testAnswer = New("Answer", "A final answer.",
	StringField("summary", "Answer paragraph"),
	ListField("key_facts", "Facts", ObjectField("", "", testFact)),
	ListField("sources", "URLs", StringField("", "")),
	NumberField("confidence", "").Unit(),
	ListField("follow_up_questions", "", StringField("", "")).Optional(),
	BoolField("complete", "").Optional(),
)

func TestValidateReturnsParsedValues(t *testing.T) {
	text := `{"fact":"Paris is the capital of France","source":"https://x.test","confidence":0.95,"extra":1}`
	got, err := Validate(testFact, text)
	require.NoError(t, err)

	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &want))
	assert.Equal(t, want, got)
}

func TestValidateNested(t *testing.T) {
	text := `{
		"summary": "Paris.",
		"key_facts": [{"fact": "f", "source": "s", "confidence": 1}],
		"sources": ["https://x.test"],
		"confidence": 0,
		"follow_up_questions": null
	}`
	_, err := Validate(testAnswer, text)
	assert.NoError(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
		path string
	}{
		{"malformed", `{"fact": "x",`, "$"},
		{"not an object", `["fact"]`, "$"},
		{"trailing data", `{"fact":"f","source":"s","confidence":0.5} {}`, "$"},
		{"missing required", `{"fact":"f","confidence":0.5}`, "$.source"},
		{"null required", `{"fact":"f","source":null,"confidence":0.5}`, "$.source"},
		{"wrong type", `{"fact":"f","source":"s","confidence":"high"}`, "$.confidence"},
		{"above bound", `{"fact":"f","source":"s","confidence":1.01}`, "$.confidence"},
		{"below bound", `{"fact":"f","source":"s","confidence":-0.1}`, "$.confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(testFact, tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMismatch))
			var merr *MismatchError
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, "Fact", merr.Schema)
			assert.Equal(t, tt.path, merr.Path)
		})
	}
}

func TestValidateNestedErrorPath(t *testing.T) {
	text := `{"summary":"s","key_facts":[{"fact":"f","source":"s","confidence":0.2},{"fact":"f","source":"s","confidence":2}],"sources":[],"confidence":0.5}`
	_, err := Validate(testAnswer, text)
	var merr *MismatchError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "Answer", merr.Schema)
	assert.Equal(t, "$.key_facts[1].confidence", merr.Path)

	_, err = Validate(testAnswer, `{"summary":"s","key_facts":[],"sources":["a",3],"confidence":0.5}`)
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "$.sources[1]", merr.Path)

	_, err = Validate(testAnswer, `{"summary":"s","key_facts":[],"sources":[],"confidence":0.5,"complete":"yes"}`)
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "$.complete", merr.Path)
}

func TestDecode(t *testing.T) {
	type fact struct {
		Fact       string  `json:"fact"`
		Source     string  `json:"source"`
		Confidence float64 `json:"confidence"`
	}
	got, err := Decode[fact](testFact, `{"fact":"f","source":"s","confidence":0.25}`)
	require.NoError(t, err)
	assert.Equal(t, fact{Fact: "f", Source: "s", Confidence: 0.25}, got)

	_, err = Decode[fact](testFact, `{"fact":"f"}`)
	assert.True(t, errors.Is(err, ErrMismatch))
}

func TestDescribeIsStable(t *testing.T) {
	first := Describe(testAnswer)
	second := Describe(testAnswer)
	assert.Equal(t, first, second)

	rebuilt := New("Answer", "A final answer.", testAnswer.Fields...)
	assert.Equal(t, string(first), string(rebuilt.Describe()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(first, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []any{"summary", "key_facts", "sources", "confidence"}, doc["required"])

	props := doc["properties"].(map[string]any)
	conf := props["confidence"].(map[string]any)
	assert.Equal(t, 0.0, conf["minimum"])
	assert.Equal(t, 1.0, conf["maximum"])
	facts := props["key_facts"].(map[string]any)
	assert.Equal(t, "array", facts["type"])
	assert.Equal(t, "Fact", facts["items"].(map[string]any)["title"])
}

func TestDescribeReturnsCopy(t *testing.T) {
	b := testFact.Describe()
	b[0] = 'X'
	assert.Equal(t, byte('{'), testFact.Describe()[0])
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(testFact, testAnswer)
	require.NoError(t, err)
	assert.Equal(t, []string{"Answer", "Fact"}, r.Names())

	s, ok := r.Lookup("Fact")
	require.True(t, ok)
	assert.Same(t, testFact, s)

	desc, err := r.Describe("Fact")
	require.NoError(t, err)
	assert.Equal(t, testFact.Describe(), desc)

	_, err = r.Validate("Fact", `{"fact":"f","source":"s","confidence":0.5}`)
	assert.NoError(t, err)

	_, err = r.Describe("Missing")
	assert.Error(t, err)
	assert.Error(t, r.Register(testFact))
}

func TestRegistryRejectsBadDeclarations(t *testing.T) {
	tests := map[string]*Schema{
		"unnamed field":   New("A", "", StringField("", "")),
		"duplicate field": New("B", "", StringField("x", ""), NumberField("x", "")),
		"list no items":   New("C", "", Field{Name: "l", Kind: List}),
		"object no shape": New("D", "", Field{Name: "o", Kind: Object}),
		"inverted bounds": New("E", "", NumberField("n", "").Bounded(1, 0)),
		"unknown kind":    New("F", "", Field{Name: "z", Kind: "date"}),
		"empty name":      New("", "", StringField("x", "")),
	}
	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := NewRegistry()
			require.NoError(t, err)
			assert.Error(t, r.Register(s))
		})
	}
}
