package workspace

import (
	"fmt"
	"os"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

// WriteManifest records the session in session.yaml at the workspace root.
func (w Workspace) WriteManifest(s entity.Session) error {
	err := writeAtomic(w.ManifestPath(), func(f *os.File) error {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (w Workspace) ReadManifest() (entity.Session, error) {
	var s entity.Session
	data, err := os.ReadFile(w.ManifestPath())
	if err != nil {
		return s, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse manifest: %w", err)
	}
	return s, nil
}
