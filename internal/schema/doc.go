package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Doc is a flat schema document: attribute name -> descriptor. It constrains
// either the parameters of one event or the global user-property map.
type Doc map[string]Descriptor

// Descriptor describes one attribute. In the stored JSON it is either a bare
// type-name string ("integer") or an object {"type": "integer", "required": true}.
type Descriptor struct {
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Primitive types a descriptor may declare.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeDouble  = "double"
	TypeBoolean = "boolean"
)

// KnownType reports whether t is a declared primitive this system supports.
func KnownType(t string) bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeDouble, TypeBoolean:
		return true
	}
	return false
}

// Parse decodes a schema document from its stored JSON form. A nil/empty
// payload or "{}" yields an empty Doc. Attribute values must be a type-name
// string or an object carrying at least "type".
func Parse(data []byte) (Doc, error) {
	if len(data) == 0 || strings.TrimSpace(string(data)) == "" {
		return Doc{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("schema document must be a JSON object: %w", err)
	}
	doc := make(Doc, len(raw))
	for name, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			doc[name] = Descriptor{Type: strings.ToLower(s)}
			continue
		}
		var obj struct {
			Type     *string `json:"type"`
			Required bool    `json:"required"`
		}
		if err := json.Unmarshal(v, &obj); err != nil {
			return nil, fmt.Errorf("attribute %q: descriptor must be a string or object", name)
		}
		if obj.Type == nil {
			return nil, fmt.Errorf("attribute %q: descriptor object missing type", name)
		}
		doc[name] = Descriptor{Type: strings.ToLower(*obj.Type), Required: obj.Required}
	}
	return doc, nil
}

// Empty reports whether the document declares no attributes.
func (d Doc) Empty() bool { return len(d) == 0 }
