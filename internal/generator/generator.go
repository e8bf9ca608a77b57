package generator

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Generator is an interface that defines a method to generate a new value of type T.
// Pipeline stages use it to stamp job ids.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV7Generator produces time-ordered UUIDv7 strings, so job ids sort in
// the order the jobs were created.
type UUIDV7Generator struct{}

func (g *UUIDV7Generator) Next() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV7Generator{}

// Static returns the same value forever. Tests use it for predictable ids.
type Static[T any] struct {
	Value T
}

func (g Static[T]) Next() (T, error) {
	return g.Value, nil
}

// ArtifactNamer builds per-utterance file paths of the form
// {dir}/{session}-{startMillis}.{ext}.
type ArtifactNamer struct {
	Dir string
}

// Path returns the artifact path for a burst from session that started at
// start. ext has no leading dot.
func (n ArtifactNamer) Path(session uint32, start time.Time, ext string) string {
	return filepath.Join(n.Dir, fmt.Sprintf("%d-%d.%s", session, start.UnixMilli(), ext))
}
