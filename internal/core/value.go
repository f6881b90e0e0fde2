package core

import "fmt"

// Value is a tagged scalar union. Every Value carries a runtime Kind tag;
// access goes through the kind-typed predicates below rather than a type
// switch on the payload, matching the reference runtime's "as_*" accessor
// style.
type Value struct {
	kind Kind

	b bool
	i int64  // backing store for I8..I64; I128 also lives here truncated-aware via iHi
	iHi int64 // high 64 bits for I128/U128, zero otherwise
	u uint64
	f float64
	s string // interned string payload (the caller is responsible for interning through Store)
	ref TableId
	q Quantity
}

// Quantity is a value with an integer mantissa, a decimal scale, and a unit
// domain tag. Two quantities are compatible (may be added or subtracted)
// iff their domains match; multiplication and division combine domains and
// sum scales.
type Quantity struct {
	Mantissa int64
	Scale    int32
	Domain   uint8
}

// Unit domains recognized by the compiler's Constant lowering.
const (
	DomainNone uint8 = iota
	DomainMass
)

// MakeQuantity constructs a normalized Quantity value.
func MakeQuantity(mantissa int64, scale int32, domain uint8) Value {
	return Value{kind: KindQuantity, q: Quantity{Mantissa: mantissa, Scale: scale, Domain: domain}}
}

// EmptyValue is the sentinel "no value" used to fill newly-resized columns.
var EmptyValue = Value{kind: KindEmpty}

// FromBool, FromString,... construct Values of a specific kind.
func FromBool(b bool) Value { return Value{kind: KindBool, b: b} }

func FromI64(i int64) Value { return Value{kind: KindI64, i: i} }
func FromI32(i int32) Value { return Value{kind: KindI32, i: int64(i)} }
func FromI16(i int16) Value { return Value{kind: KindI16, i: int64(i)} }
func FromI8(i int8) Value   { return Value{kind: KindI8, i: int64(i)} }

func FromU64(u uint64) Value { return Value{kind: KindU64, u: u} }
func FromU32(u uint32) Value { return Value{kind: KindU32, u: uint64(u)} }
func FromU16(u uint16) Value { return Value{kind: KindU16, u: uint64(u)} }
func FromU8(u uint8) Value   { return Value{kind: KindU8, u: uint64(u)} }

func FromF64(f float64) Value { return Value{kind: KindF64, f: f} }
func FromF32(f float32) Value { return Value{kind: KindF32, f: float64(f)} }

func FromString(s string) Value { return Value{kind: KindString, s: s} }

// FromReference wraps a TableId as a Reference value. The id must be
// Global; callers that violate this get a panic rather than a
// silently-corrupt table, since it can only happen from a compiler bug.
func FromReference(id TableId) Value {
	if !id.IsGlobal() {
		panic("core: FromReference requires a Global TableId")
	}
	return Value{kind: KindReference, ref: id}
}

// Kind returns the value's runtime type tag.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean payload and whether v is a KindBool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsI64 returns the signed-integer payload widened to int64, for any
// signed integer kind narrower than i128.
func (v Value) AsI64() (int64, bool) {
	switch v.kind {
	case KindI8, KindI16, KindI32, KindI64:
		return v.i, true
	default:
		return 0, false
	}
}

// AsU64 returns the unsigned-integer payload, for any unsigned kind
// narrower than u128.
func (v Value) AsU64() (uint64, bool) {
	switch v.kind {
	case KindU8, KindU16, KindU32, KindU64:
		return v.u, true
	default:
		return 0, false
	}
}

// AsF64 returns the floating-point payload for F32 or F64.
func (v Value) AsF64() (float64, bool) {
	switch v.kind {
	case KindF32, KindF64:
		return v.f, true
	default:
		return 0, false
	}
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsReference returns the TableId payload if v is a Reference, so a
// ValueIterator can follow it through chained selection.
func (v Value) AsReference() (TableId, bool) { return v.ref, v.kind == KindReference }

// AsQuantity returns the Quantity payload.
func (v Value) AsQuantity() (Quantity, bool) { return v.q, v.kind == KindQuantity }

// AsFloat64Generic converts any numeric kind (signed, unsigned, or float)
// to a float64 for generic arithmetic primitives (e.g. Range). Returns
// false for non-numeric kinds.
func (v Value) AsFloat64Generic() (float64, bool) {
	switch {
	case v.kind.IsNumeric():
		switch v.kind {
		case KindF32, KindF64:
			return v.f, true
		case KindU8, KindU16, KindU32, KindU64:
			return float64(v.u), true
		default:
			return float64(v.i), true
		}
	default:
		return 0, false
	}
}

// String renders a Value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindEmpty:
		return "<empty>"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindI8, KindI16, KindI32, KindI64:
		return fmt.Sprintf("%d", v.i)
	case KindU8, KindU16, KindU32, KindU64:
		return fmt.Sprintf("%d", v.u)
	case KindF32, KindF64:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindReference:
		return fmt.Sprintf("->%s", v.ref)
	case KindQuantity:
		return fmt.Sprintf("%d[e%d;d%d]", v.q.Mantissa, v.q.Scale, v.q.Domain)
	default:
		return "<any>"
	}
}

// QuantityAdd adds two quantities; the domains must match. It normalizes the
// result to the smaller of the two scales, matching the reference
// implementation's "normalize after every op" rule.
func QuantityAdd(a, b Quantity) (Quantity, error) {
	if a.Domain != b.Domain {
		return Quantity{}, fmt.Errorf("core: quantity domain mismatch: %d vs %d", a.Domain, b.Domain)
	}
	return normalizeAdd(a, b, 1), nil
}

// QuantitySub subtracts b from a; same domain rule as QuantityAdd.
func QuantitySub(a, b Quantity) (Quantity, error) {
	if a.Domain != b.Domain {
		return Quantity{}, fmt.Errorf("core: quantity domain mismatch: %d vs %d", a.Domain, b.Domain)
	}
	return normalizeAdd(a, b, -1), nil
}

func normalizeAdd(a, b Quantity, sign int64) Quantity {
	scale := a.Scale
	if b.Scale < scale {
		scale = b.Scale
	}
	am := a.Mantissa * pow10(a.Scale-scale)
	bm := b.Mantissa * pow10(b.Scale-scale)
	return Quantity{Mantissa: am + sign*bm, Scale: scale, Domain: a.Domain}
}

// QuantityMul multiplies two quantities, combining their unit domains and
// summing their scales. DomainNone acts as the multiplicative identity for
// domains (a dimensionless quantity does not change the other's domain).
func QuantityMul(a, b Quantity) Quantity {
	domain := a.Domain
	if domain == DomainNone {
		domain = b.Domain
	}
	return Quantity{Mantissa: a.Mantissa * b.Mantissa, Scale: a.Scale + b.Scale, Domain: domain}
}

// QuantityDiv divides a by b; scales subtract, domain rules mirror Mul.
func QuantityDiv(a, b Quantity) (Quantity, error) {
	if b.Mantissa == 0 {
		return Quantity{}, fmt.Errorf("core: division by zero quantity")
	}
	domain := a.Domain
	if domain == DomainNone {
		domain = b.Domain
	}
	return Quantity{Mantissa: a.Mantissa / b.Mantissa, Scale: a.Scale - b.Scale, Domain: domain}, nil
}

func pow10(n int32) int64 {
	if n < 0 {
		n = -n
	}
	r := int64(1)
	for i := int32(0); i < n; i++ {
		r *= 10
	}
	return r
}
