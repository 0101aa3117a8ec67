package opforge

// OperatorDescriptor identifies an operator instance and carries its
// parameters: a domain/name/version triple plus an attribute map
// (number of heads, dropout probability, ...). Immutable after
// construction; the attribute map is copied in.
type OperatorDescriptor struct {
	domain  string
	name    string
	version int
	attrs   map[string]any
}

// NewDescriptor builds an immutable operator descriptor.
func NewDescriptor(domain, name string, version int, attrs map[string]any) *OperatorDescriptor {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &OperatorDescriptor{domain: domain, name: name, version: version, attrs: copied}
}

// Domain returns the operator set domain (e.g. "opforge.custom").
func (d *OperatorDescriptor) Domain() string { return d.domain }

// Name returns the operator name.
func (d *OperatorDescriptor) Name() string { return d.name }

// Version returns the operator version.
func (d *OperatorDescriptor) Version() int { return d.version }

// AttrInt returns an integer attribute or the default value.
// Accepts int, int32 and int64 attribute values.
func (d *OperatorDescriptor) AttrInt(name string, defaultVal int) int {
	v, ok := d.attrs[name]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return defaultVal
	}
}

// AttrFloat returns a float attribute or the default value.
// Accepts float32 and float64 attribute values.
func (d *OperatorDescriptor) AttrFloat(name string, defaultVal float32) float32 {
	v, ok := d.attrs[name]
	if !ok {
		return defaultVal
	}
	switch f := v.(type) {
	case float32:
		return f
	case float64:
		return float32(f)
	default:
		return defaultVal
	}
}

// AttrBool returns a boolean attribute or the default value.
func (d *OperatorDescriptor) AttrBool(name string, defaultVal bool) bool {
	if b, ok := d.attrs[name].(bool); ok {
		return b
	}
	return defaultVal
}

// AttrString returns a string attribute or the default value.
func (d *OperatorDescriptor) AttrString(name, defaultVal string) string {
	if s, ok := d.attrs[name].(string); ok {
		return s
	}
	return defaultVal
}
