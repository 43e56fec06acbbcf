//go:build !linux

package main

import (
	"github.com/ossm-project/ossm-core/internal/board"
	"github.com/ossm-project/ossm-core/internal/logger"
)

func initDirectionPin(pin int, enabled bool) board.DirectionPin {
	if enabled {
		logger.Get().Warn("RS-485 direction GPIO requested on a non-Linux build, using no-op")
	}
	p, _ := board.NewNoopDirectionPin(pin)
	return p
}
