package flow

// shapeChecker accumulates violations instead of stopping at the first one.
type shapeChecker struct {
	violations []Violation
}

func (c *shapeChecker) add(field, kind, msg string) {
	c.violations = append(c.violations, Violation{Field: field, Kind: kind, Msg: msg})
}

func (c *shapeChecker) missing(field string) {
	c.add(field, KindMissing, "required field is missing")
}

// CheckShape validates the top-level contract of a decoded document.
// A missing or non-object container stops checks of its contents; every
// other problem is reported.
func CheckShape(v any) []Violation {
	c := &shapeChecker{}

	doc, ok := v.(map[string]any)
	if !ok || doc == nil {
		c.add("document", KindType, "must be a JSON object")
		return c.violations
	}

	c.requireString(doc, "workspaceId", "workspaceId")

	raw, present := doc["typebot"]
	if !present || raw == nil {
		c.missing("typebot")
		return c.violations
	}
	tb, ok := raw.(map[string]any)
	if !ok {
		c.add("typebot", KindType, "must be an object")
		return c.violations
	}

	c.requireString(tb, "name", "typebot.name")
	c.requireArray(tb, "groups", "typebot.groups")
	c.requireArray(tb, "edges", "typebot.edges")
	c.optionalArray(tb, "variables", "typebot.variables")
	c.optionalArray(tb, "events", "typebot.events")
	c.optionalObject(tb, "theme", "typebot.theme")
	c.optionalObject(tb, "settings", "typebot.settings")

	return c.violations
}

func (c *shapeChecker) requireString(m map[string]any, key, field string) {
	v, ok := m[key]
	if !ok || v == nil {
		c.missing(field)
		return
	}
	if _, ok := v.(string); !ok {
		c.add(field, KindType, "must be a string")
	}
}

func (c *shapeChecker) requireArray(m map[string]any, key, field string) {
	v, ok := m[key]
	if !ok || v == nil {
		c.missing(field)
		return
	}
	if _, ok := v.([]any); !ok {
		c.add(field, KindType, "must be an array")
	}
}

func (c *shapeChecker) optionalArray(m map[string]any, key, field string) {
	v, ok := m[key]
	if !ok || v == nil {
		return
	}
	if _, ok := v.([]any); !ok {
		c.add(field, KindType, "must be an array")
	}
}

func (c *shapeChecker) optionalObject(m map[string]any, key, field string) {
	v, ok := m[key]
	if !ok || v == nil {
		return
	}
	if _, ok := v.(map[string]any); !ok {
		c.add(field, KindType, "must be an object")
	}
}
