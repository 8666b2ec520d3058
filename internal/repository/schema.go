package repository

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaSet holds one compiled schema per collection.
type schemaSet struct {
	schemas map[string]*jsonschema.Schema
}

func compileSchemas() (*schemaSet, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	set := &schemaSet{schemas: make(map[string]*jsonschema.Schema, len(Collections))}
	for _, name := range Collections {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", name, err)
		}
		loc := "./" + name + ".json"
		if err := c.AddResource(loc, doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		sch, err := c.Compile(loc)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		set.schemas[name] = sch
	}
	return set, nil
}

// validate checks an encoded collection against its schema.
func (s *schemaSet) validate(name string, data []byte) error {
	sch, ok := s.schemas[name]
	if !ok {
		return fmt.Errorf("no schema for collection %q", name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
