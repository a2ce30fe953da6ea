package generateproposal

import "geoincra-portal/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["projectId", "budget"],
  "properties": {
    "projectId": {"type": "string", "minLength": 1},
    "budget": {"type": "object"}
  }
}`)
