// Package rollback defines the external backup/rollback collaborator
// port the orchestrator depends on (spec §6) plus a simple default
// implementation. A rollback point is a logical reference to an
// artifact created outside the core; this package never stores
// credentials, and the default implementation never touches the
// target database directly — restoring target state is the
// collaborator's job, not the core's.
package rollback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Handle is an opaque reference to a rollback point.
type Handle string

// Result reports whether a restore succeeded.
type Result struct {
	Restored bool
	Detail   string
}

// Collaborator creates and restores rollback points for one target.
// Implementations decide what "rollback point" means (a logical dump,
// a snapshot identifier, a no-op marker); the core only ever stores
// and passes back the Handle it is given.
type Collaborator interface {
	Create(ctx context.Context, target string) (Handle, error)
	Restore(ctx context.Context, handle Handle) (Result, error)
}

// marker is the on-disk record a FileCollaborator writes for one
// rollback point. It names the target and when the point was taken;
// it intentionally carries no schema or row data, since the default
// collaborator is a marker of intent, not a real backup mechanism.
type marker struct {
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// FileCollaborator is the default Collaborator: it records a
// timestamped marker file per rollback point under BaseDir. Restore
// confirms the marker exists and reports itself unable to actually
// reverse target-side changes, since doing so requires a real backup
// tool this package does not implement. Wire a different Collaborator
// for environments with one (a snapshot service, a logical dump/restore
// pair, a point-in-time-recovery API).
type FileCollaborator struct {
	BaseDir string
}

func NewFileCollaborator(baseDir string) *FileCollaborator {
	return &FileCollaborator{BaseDir: baseDir}
}

func (c *FileCollaborator) Create(ctx context.Context, target string) (Handle, error) {
	if err := os.MkdirAll(c.BaseDir, 0o755); err != nil {
		return "", fmt.Errorf("rollback: creating base dir: %w", err)
	}
	h := Handle(uuid.NewString())
	m := marker{Target: target, CreatedAt: time.Now()}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("rollback: encoding marker: %w", err)
	}
	path := c.path(h)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("rollback: writing marker %q: %w", path, err)
	}
	return h, nil
}

func (c *FileCollaborator) Restore(ctx context.Context, handle Handle) (Result, error) {
	path := c.path(handle)
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("rollback: reading marker %q: %w", path, err)
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Result{}, fmt.Errorf("rollback: decoding marker %q: %w", path, err)
	}
	return Result{
		Restored: false,
		Detail:   fmt.Sprintf("rollback point for target %q recorded at %s; no automatic restore available, revert manually", m.Target, m.CreatedAt.Format(time.RFC3339)),
	}, nil
}

func (c *FileCollaborator) path(h Handle) string {
	return filepath.Join(c.BaseDir, string(h)+".json")
}

// NoopCollaborator creates opaque handles with no backing store at
// all, for dry runs and tests where a rollback point is required to
// exist but never needs restoring.
type NoopCollaborator struct{}

func (NoopCollaborator) Create(ctx context.Context, target string) (Handle, error) {
	return Handle(uuid.NewString()), nil
}

func (NoopCollaborator) Restore(ctx context.Context, handle Handle) (Result, error) {
	return Result{Restored: false, Detail: "no-op collaborator: nothing to restore"}, nil
}
