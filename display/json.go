package display

import (
	"encoding/json"
)

// MarshalJSON renders two-space indented JSON. Machine consumers get
// stable formatting; humans get something readable when they ask for
// --json anyway.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
