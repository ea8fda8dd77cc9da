package briefing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schema/briefing.schema.json
var documentSchema []byte

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, compileErr = compiler.Compile(documentSchema)
	})
	return compiledSchema, compileErr
}

// Validate checks doc against the embedded JSON Schema. Violations are
// reported as a ValidationError listing every failing field.
func Validate(doc Document) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("failed to compile briefing schema: %w", err)
	}

	doc = doc.Clone()
	doc.Normalize()
	data, err := json.Marshal(doc)
	if err != nil {
		// NaN and Inf cannot be marshalled; treat them as invalid input.
		return ValidationError("validate", err.Error())
	}
	var instance map[string]interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("failed to prepare briefing for validation: %w", err)
	}

	result := s.Validate(instance)
	if result.IsValid() {
		return nil
	}

	var messages []string
	for field, evalErr := range result.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	sort.Strings(messages)
	return ValidationError("validate", strings.Join(messages, "; "))
}
