package ledgerhttp

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const orderSchemaJSON = `{
  "type": "object",
  "required": ["code", "action", "price", "volume"],
  "additionalProperties": false,
  "properties": {
    "code":         {"type": "string", "minLength": 1, "maxLength": 20},
    "action":       {"type": "string", "pattern": "^(?i)(buy|sell)$"},
    "price":        {"type": "number", "exclusiveMinimum": 0},
    "volume":       {"type": "integer", "minimum": 1},
    "fee":          {"type": "number", "minimum": 0},
    "trade_date":   {"type": "string", "pattern": "^[0-9]{8}$"},
    "strategy_tag": {"type": "string", "maxLength": 32},
    "reason":       {"type": "string", "maxLength": 255},
    "name":         {"type": "string", "maxLength": 100}
  }
}`

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}
