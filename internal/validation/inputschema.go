package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cascadehq/cascade/pkg/flow"
)

// InputValidator validates kickoff inputs against per-flow JSON Schemas
// (Draft 2020-12). Compiled schemas are cached; safe for concurrent use.
type InputValidator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewInputValidator creates an empty validator.
func NewInputValidator() *InputValidator {
	return &InputValidator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Compile eagerly compiles a schema and primes the cache, so malformed
// schemas fail at registration time rather than at kickoff.
func (v *InputValidator) Compile(rawSchema []byte) error {
	if len(rawSchema) == 0 {
		return nil
	}
	_, err := v.getOrCompile(rawSchema)
	return err
}

// Validate checks inputs against the given schema. A nil/empty schema
// accepts everything.
func (v *InputValidator) Validate(inputs map[string]any, rawSchema []byte) error {
	if len(rawSchema) == 0 {
		return nil
	}
	if inputs == nil {
		inputs = map[string]any{}
	}

	compiled, err := v.getOrCompile(rawSchema)
	if err != nil {
		return err
	}

	doc, err := toJSONValue(inputs)
	if err != nil {
		return flow.NewError(flow.ErrCodeValidation, "failed to serialize inputs").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toFlowError(err)
	}
	return nil
}

func (v *InputValidator) getOrCompile(rawSchema []byte) (*jsonschema.Schema, error) {
	key := string(rawSchema)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, flow.NewError(flow.ErrCodeValidation, "invalid input schema").WithCause(err)
	}

	// Each schema gets a unique URL to avoid collisions in the compiler.
	url := fmt.Sprintf("cascade://input-schema/%d", len(v.cache))

	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, flow.NewError(flow.ErrCodeValidation, "invalid input schema").WithCause(err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, flow.NewError(flow.ErrCodeValidation, "invalid input schema").WithCause(err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so
// that numeric values become json.Number (required by the jsonschema
// library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toFlowError converts a jsonschema.ValidationError into a flow.Error
// with the leaf violations spelled out.
func toFlowError(err error) *flow.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return flow.NewError(flow.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return flow.NewError(flow.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return flow.NewError(flow.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("input validation failed with %d errors", len(violations))
	return flow.NewError(flow.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
