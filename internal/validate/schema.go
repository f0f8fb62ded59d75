package validate

// descriptorSchema is the structural schema for a server descriptor. It covers
// required fields, the id pattern, enum membership, and numeric bounds.
// Protocol- and authentication-specific rules live in code (see Validator)
// because they depend on combinations of fields.
const descriptorSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "endpoint"],
  "properties": {
    "id": {
      "type": "string",
      "pattern": "^[A-Za-z0-9_-]+$"
    },
    "name": {
      "type": "string"
    },
    "description": {
      "type": "string"
    },
    "endpoint": {
      "type": "string",
      "minLength": 1
    },
    "protocol": {
      "type": "string",
      "enum": ["stdio", "sse", "websocket"]
    },
    "command": {
      "type": "string"
    },
    "args": {
      "type": "array",
      "items": {"type": "string"}
    },
    "env": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "authentication": {
      "type": "object",
      "properties": {
        "type": {
          "type": "string",
          "enum": ["none", "bearer", "api-key", "basic"]
        }
      }
    },
    "enabled": {
      "type": "boolean"
    },
    "healthCheck": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "interval_ms": {"type": "integer", "minimum": 1000},
        "timeout_ms": {"type": "integer", "minimum": 100},
        "retries": {"type": "integer", "minimum": 0, "maximum": 10}
      }
    },
    "retryPolicy": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "maxRetries": {"type": "integer", "minimum": 0, "maximum": 10},
        "backoffMultiplier": {"type": "number", "minimum": 1},
        "initialDelay_ms": {"type": "integer", "minimum": 0}
      }
    },
    "tags": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`
