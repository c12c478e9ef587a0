package cache

import (
	"context"
	"time"
)

// Cache es una caché clave-valor con TTL. Los valores se serializan a JSON.
type Cache interface {
	// Get rellena dest (puntero) si hay hit. (false, nil) es un miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error

	// SetNX guarda el valor sólo si la clave no existe. Devuelve true si lo guardó.
	SetNX(ctx context.Context, key string, val interface{}, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error
}
