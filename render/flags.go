package render

import "github.com/vkngwrapper/core/v2/common"

// CreateFlags switch renderer behaviors on or off
type CreateFlags int32

var createFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// RendererCreateExternallySynchronized turns off the locks inside the renderer's arenas
	// and mesh registry. The caller must guarantee that every mesh call, including
	// BuildStatsString, comes from one goroutine at a time.
	RendererCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	RendererCreateExternallySynchronized.Register("RendererCreateExternallySynchronized")
}
