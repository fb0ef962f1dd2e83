// SPDX-License-Identifier: Apache-2.0

package configschema

// These are deliberately thin: required-field and type-shape checks only,
// per spec.md §1's scope note that JSON-schema validation depth is an
// external-collaborator concern, not part of the core.

const schemaJSONSchemaSource = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tables", "references"],
  "properties": {
    "tables": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["name", "columns"],
        "properties": {
          "schema": {"type": "string"},
          "name": {"type": "string"},
          "columns": {"type": "array", "items": {"type": "string"}},
          "sequences": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "sequences": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "schema": {"type": "string"},
          "name": {"type": "string"}
        }
      }
    },
    "references": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["table", "columns", "referenceTable", "referenceColumns"],
        "properties": {
          "name": {"type": "string"},
          "table": {"type": "string"},
          "columns": {"type": "array", "items": {"type": "string"}},
          "referenceTable": {"type": "string"},
          "referenceColumns": {"type": "array", "items": {"type": "string"}},
          "directions": {
            "type": "array",
            "items": {"enum": ["forward", "reverse"]}
          },
          "deferrable": {"type": "boolean"}
        }
      }
    }
  }
}`

const transformJSONSchemaSource = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tables"],
  "properties": {
    "transforms": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["class"],
        "properties": {
          "class": {"type": "string"},
          "config": {}
        }
      }
    },
    "tables": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["columns"],
        "properties": {
          "columns": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          }
        }
      }
    }
  }
}`

const manifestJSONSchemaSource = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tables"],
  "properties": {
    "tables": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["schema", "name", "columns", "segments"],
        "properties": {
          "schema": {"type": "string"},
          "name": {"type": "string"},
          "columns": {"type": "array", "items": {"type": "string"}},
          "segments": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["rowCount"],
              "properties": {"rowCount": {"type": "integer"}}
            }
          }
        }
      }
    },
    "sequences": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["schema", "name"],
        "properties": {
          "schema": {"type": "string"},
          "name": {"type": "string"}
        }
      }
    },
    "sections": {
      "type": "object",
      "properties": {
        "preData": {"type": "integer"},
        "postData": {"type": "integer"}
      }
    }
  }
}`
