package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Storage is the host's key-value file surface. The tracker only ever
// reads and writes the serialized database through it.
type Storage interface {
	Exists(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
}

const databaseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["path", "accessCount"],
    "properties": {
      "path": {"type": "string"},
      "accessCount": {"type": "integer", "minimum": 0},
      "lastAccessed": {"type": ["integer", "null"]},
      "lastModified": {"type": ["integer", "null"]}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(databaseSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("database.json", doc); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("database.json")
	})
	return schema, schemaErr
}

// Encode serializes db as an indented JSON object keyed by path.
func Encode(db Database) ([]byte, error) {
	if db == nil {
		db = Database{}
	}
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode database: %w", err)
	}
	return data, nil
}

// Decode parses and validates a serialized database. A record whose path
// field is empty takes its key.
func Decode(data []byte) (Database, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode database: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("validate database: %w", err)
	}

	db := Database{}
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("decode database: %w", err)
	}
	for key, r := range db {
		if r.Path == "" {
			r.Path = key
			db[key] = r
		}
	}
	return db, nil
}
