package pipeline

import "strings"

// Access is a set of memory access types used by BarrierStage
type Access uint32

const (
	AccessVertexRead Access = 1 << iota
	AccessIndexRead
	AccessUniformRead
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentWrite
	AccessDepthAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
)

var accessMapping = map[Access]string{
	AccessVertexRead:           "AccessVertexRead",
	AccessIndexRead:            "AccessIndexRead",
	AccessUniformRead:          "AccessUniformRead",
	AccessShaderRead:           "AccessShaderRead",
	AccessShaderWrite:          "AccessShaderWrite",
	AccessColorAttachmentWrite: "AccessColorAttachmentWrite",
	AccessDepthAttachmentWrite: "AccessDepthAttachmentWrite",
	AccessTransferRead:         "AccessTransferRead",
	AccessTransferWrite:        "AccessTransferWrite",
}

func (a Access) String() string {
	if a == 0 {
		return "None"
	}

	var sb strings.Builder
	for i := 0; i < 32; i++ {
		checkBit := Access(1 << i)
		if (a & checkBit) != 0 {
			str, hasStr := accessMapping[checkBit]
			if hasStr {
				if sb.Len() > 0 {
					sb.WriteRune('|')
				}
				sb.WriteString(str)
			}
		}
	}

	return sb.String()
}
