package cache

import (
	"encoding/json"
	"fmt"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// JSONSerializer encodes cache entries as JSON.
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSerializationFailed, err)
	}
	return data, nil
}

func (s *JSONSerializer) Unmarshal(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %w", types.ErrSerializationFailed, err)
	}
	return nil
}

var _ types.Serializer = (*JSONSerializer)(nil)
