package mathx

// CeilDiv returns ceil(a/b) for positive integers.
// For non-positive inputs, behaviour is implementation-defined – keep to positives for firmware maths.
func CeilDiv[T ~int | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
