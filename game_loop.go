package main

import (
	"time"

	"github.com/rs/zerolog"
)

// Scheduler advances every room in lockstep at the simulation tick rate.
// Each tick targets a fixed wall-clock period; when a tick overruns, the
// next sleep clamps to zero instead of bursting to catch up.
type Scheduler struct {
	rooms []*Room // in room-number order
	log   zerolog.Logger
	stop  chan struct{}
}

// NewScheduler creates a scheduler over an ordered room list.
func NewScheduler(rooms []*Room, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		rooms: rooms,
		log:   logger.With().Str("component", "loop").Logger(),
		stop:  make(chan struct{}),
	}
}

// Run blocks, driving the tick loop until Stop is called.
func (s *Scheduler) Run() {
	period := time.Second / TickRate
	s.log.Info().Int("hz", TickRate).Msg("tick loop started")
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		start := time.Now()
		s.tickAll(start)
		elapsed := time.Since(start)
		if elapsed > period {
			s.log.Warn().Dur("elapsed", elapsed).Msg("tick overrun")
			continue
		}
		time.Sleep(period - elapsed)
	}
}

// Stop terminates the loop after the current tick.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) tickAll(now time.Time) {
	for _, room := range s.rooms {
		room.Tick(now)
	}
}
