package codec

import "reflect"

// samePointer reports whether two maps share the same backing data,
// the signal encoding/json's Marshal would loop on forever.
func samePointer(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// samePointerSlice reports whether two slices share the same backing
// array.
func samePointerSlice(a, b []any) bool {
	if cap(a) == 0 || cap(b) == 0 {
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
