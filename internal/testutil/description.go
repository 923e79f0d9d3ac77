package testutil

// CodaDescription is a trimmed copy of the Coda API description covering
// the entities the tap extracts.
const CodaDescription = `{
  "openapi": "3.1.0",
  "info": {"title": "Coda API", "version": "1.4.0"},
  "components": {
    "schemas": {
      "Type": {"type": "string", "enum": ["doc", "page", "table", "column", "row", "formula", "control", "aclPermissions"]},
      "PersonValue": {
        "type": "object",
        "properties": {"name": {"type": "string"}, "email": {"type": "string"}}
      },
      "FolderReference": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string"},
          "type": {"$ref": "#/components/schemas/Type"},
          "browserLink": {"type": "string"},
          "name": {"type": "string"}
        }
      },
      "Doc": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "type", "href", "name", "owner", "createdAt", "updatedAt"],
        "properties": {
          "id": {"type": "string"},
          "type": {"$ref": "#/components/schemas/Type"},
          "href": {"type": "string"},
          "browserLink": {"type": "string"},
          "name": {"type": "string"},
          "owner": {"type": "string"},
          "ownerName": {"type": "string"},
          "createdAt": {"type": "string", "format": "date-time"},
          "updatedAt": {"type": "string", "format": "date-time"},
          "folder": {"$ref": "#/components/schemas/FolderReference"}
        }
      },
      "PageReference": {
        "type": "object",
        "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "href": {"type": "string"}}
      },
      "Page": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "type", "name"],
        "properties": {
          "id": {"type": "string"},
          "type": {"$ref": "#/components/schemas/Type"},
          "name": {"type": "string"},
          "subtitle": {"type": "string"},
          "isHidden": {"type": "boolean"},
          "parent": {"$ref": "#/components/schemas/PageReference"},
          "children": {"type": "array", "items": {"$ref": "#/components/schemas/PageReference"}},
          "authors": {"type": "array", "items": {"$ref": "#/components/schemas/PersonValue"}}
        }
      },
      "ScalarValue": {
        "oneOf": [{"type": "string"}, {"type": "number"}, {"type": "boolean"}]
      },
      "Formula": {
        "type": "object",
        "required": ["id", "type", "name", "value"],
        "properties": {
          "id": {"type": "string"},
          "type": {"$ref": "#/components/schemas/Type"},
          "name": {"type": "string"},
          "href": {"type": "string"},
          "parent": {"$ref": "#/components/schemas/PageReference"},
          "value": {"$ref": "#/components/schemas/ScalarValue"}
        }
      },
      "ControlReference": {
        "type": "object",
        "required": ["id", "type", "name"],
        "properties": {
          "id": {"type": "string"},
          "type": {"$ref": "#/components/schemas/Type"},
          "name": {"type": "string"},
          "href": {"type": "string"},
          "parent": {"$ref": "#/components/schemas/PageReference"}
        }
      },
      "UserPrincipal": {
        "type": "object",
        "properties": {"type": {"type": "string"}, "email": {"type": "string"}}
      },
      "DomainPrincipal": {
        "type": "object",
        "properties": {"type": {"type": "string"}, "domain": {"type": "string"}}
      },
      "Permission": {
        "type": "object",
        "required": ["id", "principal", "access"],
        "properties": {
          "id": {"type": "string"},
          "access": {"type": "string", "enum": ["readonly", "write", "comment", "none"]},
          "principal": {
            "oneOf": [
              {"$ref": "#/components/schemas/UserPrincipal"},
              {"$ref": "#/components/schemas/DomainPrincipal"}
            ]
          }
        }
      },
      "TableReference": {
        "type": "object",
        "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "tableType": {"type": "string"}}
      },
      "Table": {
        "type": "object",
        "required": ["id", "type", "name", "tableType"],
        "properties": {
          "id": {"type": "string"},
          "type": {"$ref": "#/components/schemas/Type"},
          "name": {"type": "string"},
          "tableType": {"type": "string", "enum": ["table", "view"]},
          "rowCount": {"type": "integer"},
          "parent": {"$ref": "#/components/schemas/PageReference"},
          "parentTable": {"$ref": "#/components/schemas/TableReference"}
        }
      },
      "ColumnFormat": {
        "oneOf": [
          {"type": "object", "properties": {"type": {"type": "string"}, "isArray": {"type": "boolean"}}},
          {"type": "object", "properties": {"type": {"type": "string"}, "precision": {"type": "integer"}}}
        ]
      },
      "Column": {
        "type": "object",
        "required": ["id", "type", "name", "format"],
        "properties": {
          "id": {"type": "string"},
          "type": {"$ref": "#/components/schemas/Type"},
          "name": {"type": "string"},
          "display": {"type": "boolean"},
          "calculated": {"type": "boolean"},
          "format": {"$ref": "#/components/schemas/ColumnFormat"}
        }
      },
      "Row": {
        "type": "object",
        "required": ["id", "type", "name", "index", "values"],
        "properties": {
          "id": {"type": "string"},
          "type": {"$ref": "#/components/schemas/Type"},
          "name": {"type": "string"},
          "index": {"type": "integer"},
          "browserLink": {"type": "string"},
          "createdAt": {"type": "string", "format": "date-time"},
          "updatedAt": {"type": "string", "format": "date-time"},
          "values": {
            "type": "object",
            "additionalProperties": {"$ref": "#/components/schemas/ScalarValue"}
          }
        }
      }
    }
  }
}`
