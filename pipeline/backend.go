// Package pipeline schedules the recording and playback of render pipelines. A pipeline
// is an ordered list of stages. Recording translates the list into a backend command
// sequence on a background goroutine, while playback replays the last finished sequence
// on the calling goroutine.
package pipeline

import "github.com/cockroachdb/errors"

//go:generate mockgen -source backend.go -destination ./mocks/backend.go -package mock_pipeline

// ErrUnsupportedStage is returned by Backend.TranslateStage for stage types the backend
// cannot express. The stage is skipped.
var ErrUnsupportedStage = errors.New("stage type is not supported by this backend")

// Backend turns stages into a replayable command sequence and plays it back. Begin,
// Translate and End are called from the recording goroutine. PlaySequence is called
// from the goroutine that calls Pipeline.Play, and never while a recording is underway.
type Backend interface {
	BeginSequence() error
	TranslateStage(name string, stage Stage) error
	EndSequence() error
	PlaySequence() error
}
