// Package remote implements the two wireless remote protocols: the string
// command protocol (`cmd:action[:value]`) used
// by simple BLE remotes, and the fixed-size binary packet protocol used by
// the low-latency proprietary link, plus the shared pairing and
// heartbeat-watchdog machinery both transports rely on.
package remote

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/logger"
)

// Setter is the subset of internal/motionstate.State the string command
// protocol drives. motionstate.State satisfies this directly.
type Setter interface {
	SetDepthPct(uint32)
	SetLengthPct(uint32)
	SetVelocityPct(uint32)
	SetSensationPct(uint32)
	SetPattern(uint32)
	SetEnabled(bool)
}

// CommandHandler parses and dispatches the string command protocol.
type CommandHandler struct {
	state     Setter
	maxLength int
}

// NewCommandHandler constructs a handler over state. maxLength bounds the
// acknowledgement string; a reply that would not fit becomes "overflow".
func NewCommandHandler(state Setter, maxLength int) *CommandHandler {
	return &CommandHandler{state: state, maxLength: maxLength}
}

// Handle parses one line of the form `cmd:action[:value]` and applies it,
// returning the acknowledgement string: "ok:<original>" on success,
// "fail:<original>" on any parse error, with the suffix replaced by
// "overflow" if the reply would exceed maxLength.
func (h *CommandHandler) Handle(line string) string {
	ok := h.dispatch(line)
	return h.acknowledge(line, ok)
}

func (h *CommandHandler) acknowledge(original string, ok bool) string {
	prefix := "fail:"
	if ok {
		prefix = "ok:"
	}
	reply := prefix + original
	if h.maxLength > 0 && len(reply) > h.maxLength {
		return prefix + "overflow"
	}
	return reply
}

func (h *CommandHandler) dispatch(line string) bool {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) < 2 {
		logger.Get().Warn("remote command missing action", zap.String("line", line))
		return false
	}

	cmd, action := parts[0], parts[1]
	var valueStr string
	if len(parts) == 3 {
		valueStr = parts[2]
	}

	switch cmd {
	case "set":
		return h.dispatchSet(action, valueStr)
	case "go":
		return h.dispatchGo(action)
	default:
		logger.Get().Warn("unrecognised remote command verb", zap.String("cmd", cmd))
		return false
	}
}

func (h *CommandHandler) dispatchSet(action, valueStr string) bool {
	value, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		logger.Get().Warn("remote command value is not numeric",
			zap.String("action", action), zap.String("value", valueStr))
		return false
	}
	v := uint32(value)

	switch action {
	case "speed":
		h.state.SetVelocityPct(v)
	case "stroke":
		h.state.SetLengthPct(v)
	case "depth":
		h.state.SetDepthPct(v)
	case "sensation":
		h.state.SetSensationPct(v)
	case "pattern":
		h.state.SetPattern(v)
	default:
		logger.Get().Warn("unrecognised remote set action", zap.String("action", action))
		return false
	}
	return true
}

func (h *CommandHandler) dispatchGo(action string) bool {
	switch action {
	case "simplePenetration", "strokeEngine":
		h.state.SetEnabled(true)
	case "menu":
		h.state.SetEnabled(false)
	default:
		logger.Get().Warn("unrecognised remote go action", zap.String("action", action))
		return false
	}
	return true
}
