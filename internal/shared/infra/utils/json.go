package utils

import (
	"encoding/json"
	"fmt"
)

// DecodeEvent deserializa el contenido de un evento al tipo T.
func DecodeEvent[T any](payload []byte) (T, error) {
	var evt T
	if err := json.Unmarshal(payload, &evt); err != nil {
		return evt, fmt.Errorf("decode %T: %w", evt, err)
	}
	return evt, nil
}

// Ternary es un operador ternario genérico.
func Ternary[T any](condition bool, ifTrue, ifFalse T) T {
	if condition {
		return ifTrue
	}
	return ifFalse
}
