package control

import (
	"net"

	"github.com/corvid-labs/ago/pkg/codec"
)

// handlerFunc handles one accepted request. It owns writing the terminal
// Response to conn (optionally preceded by Event frames for streaming ops)
// and returns a non-nil error only for logging/metrics — the response is
// always written regardless.
type handlerFunc func(s *Server, conn net.Conn, req *codec.Request) error

// dispatchTable is the closed op -> handler mapping SPEC_FULL.md §9 asks
// for in place of open dynamic dispatch.
var dispatchTable = map[string]handlerFunc{
	codec.OpCreate:    handleCreate,
	codec.OpRun:       handleRun,
	codec.OpPS:        handlePS,
	codec.OpInspect:   handleInspect,
	codec.OpChat:      handleChat,
	codec.OpSend:      handleSend,
	codec.OpLogs:      handleLogs,
	codec.OpStop:      handleStop,
	codec.OpQueues:    handleQueues,
	codec.OpTemplates: handleTemplates,
	codec.OpPull:      handlePull,
	codec.OpConfig:    handleConfig,
	codec.OpShutdown:  handleShutdown,
}
