// Package brickop stands in for the filesystem I/O translators spec.md §1
// scopes out ("the coordinator dispatches operations to them but does not
// implement them"). Registry is the lookup the dispatch engine's brick-op
// collaborator uses to find the translator responsible for one brick path;
// Static is a trivial test double.
package brickop

import (
	"context"
	"fmt"
	"sync"

	"github.com/joeycumines/clustermgmt/internal/wireops"
)

// Translator executes one brick-level operation against a single brick.
type Translator interface {
	Execute(ctx context.Context, phase wireops.BrickOpPhase, op wireops.OperationCode, dict wireops.Dict) error
}

// TranslatorFunc adapts a function to a Translator.
type TranslatorFunc func(ctx context.Context, phase wireops.BrickOpPhase, op wireops.OperationCode, dict wireops.Dict) error

func (f TranslatorFunc) Execute(ctx context.Context, phase wireops.BrickOpPhase, op wireops.OperationCode, dict wireops.Dict) error {
	return f(ctx, phase, op, dict)
}

// Registry resolves a brick path to the Translator that owns it.
type Registry interface {
	Translator(brickPath string) (Translator, bool)
}

// Static is a Registry backed by a map, seeded at construction and extended
// or updated through Register.
type Static struct {
	mu     sync.RWMutex
	bricks map[string]Translator
}

// NewStatic constructs a Static registry from an initial brick->translator
// mapping; additional bricks may be added later via Register.
func NewStatic(bricks map[string]Translator) *Static {
	s := &Static{bricks: make(map[string]Translator, len(bricks))}
	for path, tr := range bricks {
		s.bricks[path] = tr
	}
	return s
}

// Register adds or replaces the translator for brickPath.
func (s *Static) Register(brickPath string, tr Translator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bricks[brickPath] = tr
}

func (s *Static) Translator(brickPath string) (Translator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.bricks[brickPath]
	return tr, ok
}

var _ Registry = (*Static)(nil)

// ErrBrickUnknown is returned by convenience callers when a brick path has
// no registered Translator.
type ErrBrickUnknown struct{ BrickPath string }

func (e ErrBrickUnknown) Error() string {
	return fmt.Sprintf("brickop: no translator registered for brick %q", e.BrickPath)
}
