package main

import (
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// listenMIDI opens the first input port whose name contains name and forwards
// raw messages to msgs. Messages are dropped when msgs is full so the driver
// callback never blocks.
func listenMIDI(name string, msgs chan<- []byte, logger *slog.Logger) (func(), error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("open MIDI driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("list MIDI inputs: %w", err)
	}

	var found drivers.In
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
		if found == nil && strings.Contains(strings.ToLower(in.String()), strings.ToLower(name)) {
			found = in
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("MIDI input %q not found (available: %s)", name, strings.Join(names, ", "))
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open MIDI port %q: %w", found.String(), err)
	}

	stop, err := midi.ListenTo(found, func(msg midi.Message, timestampms int32) {
		select {
		case msgs <- append([]byte(nil), msg.Bytes()...):
		default:
			logger.Warn("MIDI backlog full, dropping message", "msg", msg.String())
		}
	}, midi.HandleError(func(err error) {
		logger.Warn("MIDI listener error", "device", found.String(), "err", err)
	}))
	if err != nil {
		found.Close()
		drv.Close()
		return nil, fmt.Errorf("listen on %q: %w", found.String(), err)
	}
	logger.Info("MIDI input connected", "device", found.String())

	return func() {
		stop()
		_ = found.Close()
		drv.Close()
		logger.Info("MIDI connection closed", "device", found.String())
	}, nil
}
