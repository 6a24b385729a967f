package tools

// JSON Schema fragment builders for tool input declarations. Each tool
// describes its inputs as an ObjectSchema of typed properties; the model
// (or an API caller) fills them in as a JSON object.

// prop is the shared shape of every property fragment.
func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

// ObjectSchema wraps properties into an object schema, marking the named
// ones required.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty declares a free-form string input.
func StringProperty(description string) map[string]interface{} {
	return prop("string", description)
}

// StringEnumProperty declares a string input restricted to the given values.
func StringEnumProperty(description string, values ...string) map[string]interface{} {
	p := prop("string", description)
	p["enum"] = values
	return p
}

// NumberProperty declares a floating-point input.
func NumberProperty(description string) map[string]interface{} {
	return prop("number", description)
}

// IntegerProperty declares an integer input.
func IntegerProperty(description string) map[string]interface{} {
	return prop("integer", description)
}

// BooleanProperty declares a boolean input.
func BooleanProperty(description string) map[string]interface{} {
	return prop("boolean", description)
}

// ArrayProperty declares an array input whose elements match itemType.
func ArrayProperty(description string, itemType map[string]interface{}) map[string]interface{} {
	p := prop("array", description)
	p["items"] = itemType
	return p
}
