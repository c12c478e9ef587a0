package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AsyncCacheSet actualiza la caché en background sin bloquear al llamador.
func AsyncCacheSet(c Cache, key string, value interface{}, ttl time.Duration, log *zap.Logger) {
	if c == nil {
		return
	}
	go func() {
		// Contexto propio: la petición original puede haber terminado ya.
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		if err := c.Set(ctx, key, value, ttl); err != nil {
			log.Warn("Cache update failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

// InvalidateCache borra la clave. Se llama tras confirmar la escritura, nunca dentro de la transacción.
func InvalidateCache(ctx context.Context, c Cache, key string, log *zap.Logger) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, key); err != nil {
		log.Warn("Cache deletion failed", zap.String("key", key), zap.Error(err))
	}
}
