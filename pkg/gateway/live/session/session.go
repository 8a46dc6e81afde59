// Package session runs one speak websocket connection. A single run
// loop multiplexes inbound control frames against the lifecycle of at
// most one generation task, so start and stop always observe a
// consistent state.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/pkg/core/segment"
	"github.com/voxgate/voxgate/pkg/core/voice/tts"
	"github.com/voxgate/voxgate/pkg/gateway/live/protocol"
)

const maxCanceledGenerations = 64

var errWriterClosed = errors.New("live outbound writer closed")

type Config struct {
	DefaultVoice        string
	DefaultSpeed        float64
	OutboundQueueSize   int
	MaxJSONMessageBytes int64
	PingInterval        time.Duration
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
}

type Dependencies struct {
	Conn      *websocket.Conn
	Logger    *slog.Logger
	TTS       tts.Provider
	Segmenter segment.Segmenter
	SessionID string
	Config    Config
}

// Session owns one websocket connection and at most one in-flight
// generation. All socket writes go through the outbound writer; the
// run loop is the only goroutine that starts or cancels generations.
type Session struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	tts       tts.Provider
	segmenter segment.Segmenter
	sessionID string
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc

	outbound   chan outboundFrame
	writerDone chan struct{}

	canceledGens atomic.Value // canceledState
	genCounter   atomic.Int64
}

type canceledState struct {
	set   map[int64]struct{}
	order []int64
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

type taskOutcome int

const (
	outcomeCompleted taskOutcome = iota
	outcomeCanceled
	outcomeFailed
)

type taskResult struct {
	gen     int64
	outcome taskOutcome
	err     error
}

type generationTask struct {
	gen    int64
	cancel context.CancelFunc
	done   chan taskResult
}

func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.TTS == nil {
		return nil, fmt.Errorf("tts provider is required")
	}
	if deps.Segmenter == nil {
		return nil, fmt.Errorf("segmenter is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.DefaultVoice == "" {
		deps.Config.DefaultVoice = protocol.DefaultVoice
	}
	if deps.Config.DefaultSpeed <= 0 {
		deps.Config.DefaultSpeed = protocol.DefaultSpeed
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:       deps.Conn,
		logger:     deps.Logger,
		tts:        deps.TTS,
		segmenter:  deps.Segmenter,
		sessionID:  deps.SessionID,
		cfg:        deps.Config,
		ctx:        ctx,
		cancel:     cancel,
		outbound:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		writerDone: make(chan struct{}),
	}
	s.canceledGens.Store(canceledState{set: make(map[int64]struct{})})
	return s, nil
}

// CancelFunc returns a func that aborts the whole session. Used by the
// tracker to drain sessions at shutdown.
func (s *Session) CancelFunc() func() {
	return s.cancel
}

// Run drives the session until the client disconnects or the socket
// fails. It always returns with the connection closed and all
// goroutines stopped.
func (s *Session) Run() error {
	defer s.cancel()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	readCh := make(chan inboundFrame, 16)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:         s.conn,
			ctx:        s.ctx,
			cfg:        s.cfg,
			frames:     s.outbound,
			isCanceled: s.isGenerationCanceled,
		}
		writerErrCh <- w.Run()
		close(s.writerDone)
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	var active *generationTask

	// stopActive cancels the in-flight generation and blocks until its
	// goroutine reports back, so a replacement never overlaps it.
	stopActive := func() {
		if active == nil {
			return
		}
		s.markGenerationCanceled(active.gen)
		active.cancel()
		<-active.done
		active = nil
	}

	s.logger.Info("speak session started", "session_id", s.sessionID)
	defer s.logger.Info("speak session closed", "session_id", s.sessionID)

	for {
		select {
		case <-s.ctx.Done():
			stopActive()
			return nil
		case err := <-writerErrCh:
			stopActive()
			return err
		case frame, ok := <-readCh:
			if !ok || frame.err != nil {
				stopActive()
				return nil
			}
			if frame.messageType != websocket.TextMessage {
				if err := s.sendError("binary frames are not supported"); err != nil {
					return s.ignoreWriterClosed(err)
				}
				continue
			}
			msg, decErr := protocol.DecodeClientMessage(frame.data)
			if decErr != nil {
				if err := s.sendError(decErr.Error()); err != nil {
					return s.ignoreWriterClosed(err)
				}
				continue
			}
			switch m := msg.(type) {
			case *protocol.ClientStart:
				stopActive()
				s.applyStartDefaults(m)
				active = s.startGeneration(&wg, m)
			case *protocol.ClientStop:
				stopActive()
				if err := s.enqueue(protocol.NewStopped(), 0, false); err != nil {
					return s.ignoreWriterClosed(err)
				}
			}
		case res := <-activeDone(active):
			active = nil
			switch res.outcome {
			case outcomeCompleted:
				if err := s.enqueue(protocol.NewDone(), 0, false); err != nil {
					return s.ignoreWriterClosed(err)
				}
			case outcomeFailed:
				s.logger.Warn("generation failed", "session_id", s.sessionID, "error", res.err)
				if err := s.sendError("generation failed"); err != nil {
					return s.ignoreWriterClosed(err)
				}
			case outcomeCanceled:
				// Canceled from our side; the stop or start handler
				// already accounted for it.
			}
		}
	}
}

func activeDone(t *generationTask) <-chan taskResult {
	if t == nil {
		return nil
	}
	return t.done
}

func (s *Session) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		frame := inboundFrame{messageType: messageType, data: data, err: err}
		select {
		case out <- frame:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// applyStartDefaults fills voice and speed from the session config when
// the start frame omits them.
func (s *Session) applyStartDefaults(start *protocol.ClientStart) {
	if start.Voice == "" {
		start.Voice = s.cfg.DefaultVoice
	}
	if start.Speed == 0 {
		start.Speed = s.cfg.DefaultSpeed
	}
}

func (s *Session) startGeneration(wg *sync.WaitGroup, start *protocol.ClientStart) *generationTask {
	gen := s.genCounter.Add(1)
	genCtx, cancel := context.WithCancel(s.ctx)
	task := &generationTask{
		gen:    gen,
		cancel: cancel,
		done:   make(chan taskResult, 1),
	}
	s.logger.Debug("generation started",
		"session_id", s.sessionID,
		"generation", gen,
		"voice", start.Voice,
		"text_len", len(start.Text))
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		task.done <- s.runGeneration(genCtx, gen, start)
	}()
	return task
}

func (s *Session) runGeneration(ctx context.Context, gen int64, start *protocol.ClientStart) taskResult {
	units := s.segmenter.Segment(start.Text)
	for i, unit := range units {
		if i > 0 && ctx.Err() != nil {
			return taskResult{gen: gen, outcome: outcomeCanceled}
		}
		// The first unit is announced even when a stop races the task
		// startup, so the client always sees which unit was aborted.
		// Sentence frames stay deliverable once enqueued; only audio
		// is droppable.
		if err := s.enqueue(protocol.NewSentenceStart(i, unit.Text, unit.Start, unit.End), gen, false); err != nil {
			return s.enqueueFailure(gen, err)
		}
		if ctx.Err() != nil {
			return taskResult{gen: gen, outcome: outcomeCanceled}
		}
		if err := s.speakUnit(ctx, gen, i, unit.Text, start); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return taskResult{gen: gen, outcome: outcomeCanceled}
			}
			if errors.Is(err, errWriterClosed) {
				return taskResult{gen: gen, outcome: outcomeCanceled}
			}
			s.logger.Warn("sentence synthesis failed",
				"session_id", s.sessionID,
				"generation", gen,
				"sentence", i,
				"error", err)
			// One bad sentence does not abort the generation; report it
			// and move on to the next unit.
			if err := s.enqueue(protocol.NewError(fmt.Sprintf("synthesis failed for sentence %d", i)), gen, false); err != nil {
				return s.enqueueFailure(gen, err)
			}
			continue
		}
		if err := s.enqueue(protocol.NewSentenceEnd(i), gen, false); err != nil {
			return s.enqueueFailure(gen, err)
		}
	}
	if ctx.Err() != nil {
		return taskResult{gen: gen, outcome: outcomeCanceled}
	}
	return taskResult{gen: gen, outcome: outcomeCompleted}
}

func (s *Session) enqueueFailure(gen int64, err error) taskResult {
	if errors.Is(err, errWriterClosed) || errors.Is(err, context.Canceled) {
		return taskResult{gen: gen, outcome: outcomeCanceled}
	}
	return taskResult{gen: gen, outcome: outcomeFailed, err: err}
}

func (s *Session) speakUnit(ctx context.Context, gen int64, index int, text string, start *protocol.ClientStart) error {
	stream, err := s.tts.SynthesizeStream(ctx, text, tts.SynthesizeOptions{
		Voice: start.Voice,
		Speed: start.Speed,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return stream.Err()
			}
			if len(chunk) == 0 {
				continue
			}
			frame := protocol.NewAudio(index, base64.StdEncoding.EncodeToString(chunk))
			if err := s.enqueue(frame, gen, true); err != nil {
				return err
			}
		}
	}
}

// enqueue marshals a server message onto the outbound queue. It fails
// with errWriterClosed when the writer has exited so producers unwind
// instead of blocking on a dead socket.
func (s *Session) enqueue(msg any, gen int64, dropOnCancel bool) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	frame := outboundFrame{dropOnCancel: dropOnCancel, gen: gen, payload: payload}
	select {
	case s.outbound <- frame:
		return nil
	case <-s.writerDone:
		return errWriterClosed
	case <-s.ctx.Done():
		return context.Canceled
	}
}

func (s *Session) sendError(message string) error {
	return s.enqueue(protocol.NewError(message), 0, false)
}

func (s *Session) ignoreWriterClosed(err error) error {
	if errors.Is(err, errWriterClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// markGenerationCanceled records gen so the writer drops its queued
// audio frames. Only the run loop writes this state; the copy keeps
// readers lock-free.
func (s *Session) markGenerationCanceled(gen int64) {
	prev := s.canceledGens.Load().(canceledState)
	next := canceledState{
		set:   make(map[int64]struct{}, len(prev.set)+1),
		order: make([]int64, 0, len(prev.order)+1),
	}
	for id := range prev.set {
		next.set[id] = struct{}{}
	}
	next.order = append(next.order, prev.order...)
	if _, ok := next.set[gen]; !ok {
		next.set[gen] = struct{}{}
		next.order = append(next.order, gen)
	}
	for len(next.order) > maxCanceledGenerations {
		oldest := next.order[0]
		next.order = next.order[1:]
		delete(next.set, oldest)
	}
	s.canceledGens.Store(next)
}

func (s *Session) isGenerationCanceled(gen int64) bool {
	state := s.canceledGens.Load().(canceledState)
	_, ok := state.set[gen]
	return ok
}
