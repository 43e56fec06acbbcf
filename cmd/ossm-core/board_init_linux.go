//go:build linux

package main

import (
	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/board"
	"github.com/ossm-project/ossm-core/internal/logger"
)

func initDirectionPin(pin int, enabled bool) board.DirectionPin {
	if !enabled {
		p, _ := board.NewNoopDirectionPin(pin)
		return p
	}
	p, err := board.NewRPIODirectionPin(pin)
	if err != nil {
		logger.Get().Warn("failed to init RS-485 direction GPIO, falling back to no-op", zap.Error(err))
		noop, _ := board.NewNoopDirectionPin(pin)
		return noop
	}
	return p
}
