package filesystem

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

// JSONDeadLetterStorage guarda los mensajes muertos en un fichero JSON.
// Pensado para desarrollo local, sin base de datos.
type JSONDeadLetterStorage struct {
	filePath string
	mu       sync.Mutex
}

var _ sharedDomain.DeadLetterStore = (*JSONDeadLetterStorage)(nil)

func NewJSONDeadLetterStorage(filePath string) *JSONDeadLetterStorage {
	return &JSONDeadLetterStorage{filePath: filePath}
}

// Save añade el mensaje y reescribe el fichero completo. Si no existe, lo crea.
func (s *JSONDeadLetterStorage) Save(ctx context.Context, dl sharedDomain.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	letters, err := s.readAll()
	if err != nil {
		return err
	}
	dl.Error = sharedDomain.TruncateError(dl.Error)
	letters = append(letters, dl)

	data, err := json.MarshalIndent(letters, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// Escritura atómica: fichero temporal y rename.
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

// List devuelve los mensajes del más reciente al más antiguo.
func (s *JSONDeadLetterStorage) List(ctx context.Context, limit, offset int) ([]sharedDomain.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	letters, err := s.readAll()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(letters, func(i, j int) bool {
		return letters[i].FailedOnUtc.After(letters[j].FailedOnUtc)
	})

	if offset >= len(letters) {
		return []sharedDomain.DeadLetter{}, nil
	}
	end := len(letters)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return letters[offset:end], nil
}

func (s *JSONDeadLetterStorage) readAll() ([]sharedDomain.DeadLetter, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []sharedDomain.DeadLetter{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []sharedDomain.DeadLetter{}, nil
	}

	var letters []sharedDomain.DeadLetter
	if err := json.Unmarshal(data, &letters); err != nil {
		return nil, err
	}
	return letters, nil
}
