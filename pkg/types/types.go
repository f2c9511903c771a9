// Package types resolves the Go type parameter bound to a Node into the
// runtime information the register file and code generator need: byte
// size, signedness, and whether the value is a pointer. This is the
// Go-generic stand-in for the template-driven type system NativeJIT's
// C++ uses; Go generics erase type identity at runtime, so this is
// computed via reflection. Of reflects on every call; results are not
// cached.
package types

import "reflect"

// Kind identifies the register class a value occupies.
type Kind uint8

const (
	// KindInvalid marks a type this core cannot hold in a node.
	KindInvalid Kind = iota
	KindI64
	KindU64
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindPointer:
		return "ptr"
	default:
		return "invalid"
	}
}

// Info describes the type bound to a Node[T].
type Info struct {
	Kind Kind
	Size int // bytes; always 8 in this core (see SPEC_FULL.md §3)
	Name string
}

// IsPointer reports whether values of this type are addresses.
func (i Info) IsPointer() bool { return i.Kind == KindPointer }

// IsSigned reports whether arithmetic on this type uses signed comparisons.
func (i Info) IsSigned() bool { return i.Kind == KindI64 }

// Of resolves the Info for a Node's type parameter T. T must be int64 or
// int (KindI64), uint64, uint or uintptr (KindU64), or a pointer type,
// including unsafe.Pointer (KindPointer); anything else returns
// KindInvalid.
func Of[T any]() Info {
	var zero T
	rt := reflect.TypeOf(&zero).Elem()
	return fromReflect(rt)
}

func fromReflect(rt reflect.Type) Info {
	switch rt.Kind() {
	case reflect.Ptr, reflect.UnsafePointer:
		name := "ptr"
		if rt.Kind() == reflect.Ptr {
			name = "*" + rt.Elem().String()
		}
		return Info{Kind: KindPointer, Size: 8, Name: name}
	case reflect.Int64, reflect.Int:
		return Info{Kind: KindI64, Size: 8, Name: "int64"}
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return Info{Kind: KindU64, Size: 8, Name: "uint64"}
	default:
		return Info{Kind: KindInvalid, Size: 0, Name: rt.String()}
	}
}
