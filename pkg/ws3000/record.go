package ws3000

// FieldValue is a decoded field. Absent is set when the raw value is the
// field's sentinel, in which case Value is meaningless.
type FieldValue struct {
	Field  Field
	Raw    uint16
	Value  float64
	Absent bool
}

// Record is the decoded payload of one console response.
type Record struct {
	Command Command
	Values  []FieldValue
}

// Lookup finds the value of a field by kind and channel.
func (r *Record) Lookup(kind FieldKind, channel int) (FieldValue, bool) {
	if r == nil {
		return FieldValue{}, false
	}
	for _, v := range r.Values {
		if v.Field.Kind == kind && v.Field.Channel == channel {
			return v, true
		}
	}
	return FieldValue{}, false
}
