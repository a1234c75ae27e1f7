package reconnect

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Slot holds at most one capability. Save overwrites whatever was there,
// whatever room it belonged to.
type Slot interface {
	Load(ctx context.Context) (*Capability, error)
	Save(ctx context.Context, c Capability) error
	Clear(ctx context.Context) error
}

// FileSlot keeps the capability in a JSON file at a fixed path.
type FileSlot struct {
	path string
}

func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

func (s *FileSlot) Load(ctx context.Context) (*Capability, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c Capability
	if err := json.Unmarshal(b, &c); err != nil || !c.Valid() {
		// Unreadable slot content is treated as absent.
		return nil, s.Clear(ctx)
	}
	return &c, nil
}

func (s *FileSlot) Save(_ context.Context, c Capability) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileSlot) Clear(context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
