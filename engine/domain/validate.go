package domain

import "strings"

// ParseObjectType accepts an object type name case-insensitively.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllObjectTypes {
		if t == known {
			return t, nil
		}
	}
	return "", NewValidationError("object_type", s, ErrUnknownObjectType)
}

// ParseObjectTypes parses a comma separated list. An empty list yields
// AllObjectTypes; duplicates are dropped.
func ParseObjectTypes(list string) ([]ObjectType, error) {
	if strings.TrimSpace(list) == "" {
		return append([]ObjectType(nil), AllObjectTypes...), nil
	}
	seen := make(map[ObjectType]bool)
	var out []ObjectType
	for _, part := range strings.Split(list, ",") {
		t, err := ParseObjectType(part)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}
