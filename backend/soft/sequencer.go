package soft

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/rendercore/pipeline"
)

// ErrMidRebuild is returned by PlaySequence if it is called while a sequence is being recorded
var ErrMidRebuild = errors.New("sequence played while it was being rebuilt")

// Sequencer is a pipeline.Backend whose "commands" are the names of the stages it
// translated. Custom stages have their Record callback run with the Sequencer as the
// command target.
type Sequencer struct {
	mutex       sync.Mutex
	unsupported map[pipeline.StageKind]struct{}
	building    bool
	recording   []string
	current     []string
	played      [][]string
	recorded    int

	// OnTranslate, when set, is called for every stage before it is translated
	OnTranslate func(name string, stage pipeline.Stage)
}

var _ pipeline.Backend = &Sequencer{}

// NewSequencer creates a sequencer that rejects the listed stage kinds with
// pipeline.ErrUnsupportedStage
func NewSequencer(unsupported ...pipeline.StageKind) *Sequencer {
	s := &Sequencer{unsupported: make(map[pipeline.StageKind]struct{})}
	for _, kind := range unsupported {
		s.unsupported[kind] = struct{}{}
	}
	return s
}

func (s *Sequencer) BeginSequence() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.building {
		return errors.New("sequence is already being recorded")
	}

	s.building = true
	s.recording = nil
	return nil
}

func (s *Sequencer) TranslateStage(name string, stage pipeline.Stage) error {
	if s.OnTranslate != nil {
		s.OnTranslate(name, stage)
	}

	s.mutex.Lock()
	_, unsupported := s.unsupported[stage.Kind()]
	s.mutex.Unlock()

	if unsupported {
		return errors.Wrapf(pipeline.ErrUnsupportedStage, "%s stage %q", stage.Kind(), name)
	}

	if custom, isCustom := stage.(*pipeline.CustomStage); isCustom && custom.Record != nil {
		err := custom.Record(s)
		if err != nil {
			return errors.Wrapf(err, "custom stage %q", name)
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.recording = append(s.recording, name)
	return nil
}

func (s *Sequencer) EndSequence() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.building {
		return errors.New("no sequence is being recorded")
	}

	s.current = s.recording
	s.recording = nil
	s.building = false
	s.recorded++
	return nil
}

func (s *Sequencer) PlaySequence() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.building {
		return ErrMidRebuild
	}

	s.played = append(s.played, append([]string(nil), s.current...))
	return nil
}

// Current is the last completed sequence
func (s *Sequencer) Current() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]string(nil), s.current...)
}

// Played returns every sequence played so far, oldest first
func (s *Sequencer) Played() [][]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([][]string(nil), s.played...)
}

// Recorded is the number of sequences that finished recording
func (s *Sequencer) Recorded() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.recorded
}
