package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Encode returns the stored representation of uow.
func Encode[T task.Task](uow *worker.UnitOfWork[T]) ([]byte, error) {
	data, err := json.Marshal(uow)
	if err != nil {
		return nil, fmt.Errorf("encode unit of work %s: %w", uow.ID, err)
	}
	return data, nil
}

// Decode restores a unit of work written by Encode.
func Decode[T task.Task](data []byte) (*worker.UnitOfWork[T], error) {
	var uow worker.UnitOfWork[T]
	if err := json.Unmarshal(data, &uow); err != nil {
		return nil, fmt.Errorf("decode unit of work: %w", err)
	}
	return &uow, nil
}

// ValidateID rejects ids that cannot be used as storage keys.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty unit of work id", ErrInvalidID)
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
