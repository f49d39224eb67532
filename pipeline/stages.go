package pipeline

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
)

// ErrDuplicateStage is returned by Stages.Add when the name is already taken
var ErrDuplicateStage = errors.New("a stage with this name already exists")

// ErrUnknownStage is returned when a stage name is not in the list
var ErrUnknownStage = errors.New("no stage with this name")

type namedStage struct {
	name  string
	stage Stage
}

// Stages is an ordered list of named stages. Order is execution order. Names give
// random access for patching stages after the pipeline is built.
type Stages struct {
	list   []namedStage
	lookup *swiss.Map[string, int]
}

func NewStages() *Stages {
	return &Stages{
		lookup: swiss.NewMap[string, int](8),
	}
}

// Add appends a stage to the end of the list
func (s *Stages) Add(name string, stage Stage) error {
	if stage == nil {
		return errors.Newf("stage %q is nil", name)
	}
	if s.lookup.Has(name) {
		return errors.Wrapf(ErrDuplicateStage, "add stage %q", name)
	}

	s.lookup.Put(name, len(s.list))
	s.list = append(s.list, namedStage{name: name, stage: stage})
	return nil
}

func (s *Stages) Lookup(name string) (Stage, bool) {
	index, ok := s.lookup.Get(name)
	if !ok {
		return nil, false
	}
	return s.list[index].stage, true
}

// Index returns the position of a stage in execution order
func (s *Stages) Index(name string) (int, bool) {
	return s.lookup.Get(name)
}

func (s *Stages) Len() int {
	return len(s.list)
}

// Each calls visit for every stage in execution order, stopping early if visit returns false
func (s *Stages) Each(visit func(index int, name string, stage Stage) bool) {
	for index, entry := range s.list {
		if !visit(index, entry.name, entry.stage) {
			return
		}
	}
}
