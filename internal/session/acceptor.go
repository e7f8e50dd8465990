package session

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// acceptor is the single producer of spec.md §4.6: it holds the intake
// pipe open for the server's whole lifetime and decodes one connection
// frame at a time into the Ring. A FIFO's read end sees EOF whenever no
// writer currently has it open; that is not connection loss here, just
// a lull between clients, so EOF is not fatal — the read is simply
// retried.
//
// limiter bounds how fast newly-decoded frames are admitted into the
// ring: a connection flood degrades to queuing delay rather than
// exhausting session slots outright, per spec.md §7's "resource
// exhaustion: log, degrade" rule for the post-startup case.
type acceptor struct {
	intake     *os.File
	ring       *Ring
	maxPathLen int
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

func (a *acceptor) run(ctx context.Context) {
	frameSize := ConnectFrameSize(a.maxPathLen)
	raw := make([]byte, frameSize)

	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := io.ReadFull(a.intake, raw); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				continue
			}
			a.logger.Error().Err(err).Msg("intake read failed")
			return
		}

		frame, ok := DecodeConnectFrame(raw, a.maxPathLen)
		if !ok {
			a.logger.Warn().Msg("malformed connection frame, dropping")
			continue
		}

		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return
			}
		}

		if !a.ring.Enqueue(ctx, frame) {
			return
		}
	}
}
