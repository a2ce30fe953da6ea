package resolvemunicipality

import "geoincra-portal/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": {"type": "string", "maxLength": 100},
    "state": {"type": "string", "minLength": 2, "maxLength": 2}
  }
}`)
