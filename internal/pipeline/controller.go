package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/earshot-labs/earshot/internal/history"
	"github.com/earshot-labs/earshot/internal/protocol"
	"github.com/earshot-labs/earshot/internal/recognizer"
	"github.com/earshot-labs/earshot/internal/rewrite"
)

// State of the recognition loop.
type State int32

const (
	Stopped State = iota
	Starting
	Listening
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Listening:
		return "listening"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Stream is the audio input the controller opens before the loop starts
// and closes during shutdown.
type Stream interface {
	Start() error
	Stop() error
}

// Publisher fans a finalized utterance out to external consumers.
type Publisher interface {
	PublishUtterance(protocol.Utterance) error
}

// Archive persists finalized utterances beyond the in-memory history.
type Archive interface {
	AppendUtterance(ctx context.Context, utt protocol.Utterance) error
}

// Options wires the controller's collaborators. Publisher and Archive are
// optional.
type Options struct {
	Logger    *slog.Logger
	Engine    recognizer.Engine
	Queue     *ChunkQueue
	Rewriter  *rewrite.Rewriter
	History   *history.Store
	Stream    Stream
	Publisher Publisher
	Archive   Archive
	SessionID string
}

// Controller owns the recognition loop: it opens the capture stream,
// runs the consumer goroutine, and guarantees a bounded Stop. The engine
// and the history store are touched only from the loop goroutine while
// the controller is running.
type Controller struct {
	log       *slog.Logger
	engine    recognizer.Engine
	queue     *ChunkQueue
	rewriter  *rewrite.Rewriter
	history   *history.Store
	stream    Stream
	publisher Publisher
	archive   Archive
	sessionID string

	state      atomic.Int32
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	utterances atomic.Int64

	uttCounter metric.Int64Counter
}

func NewController(opts Options) *Controller {
	c := &Controller{
		log:       opts.Logger.With(slog.String("component", "recognition-loop")),
		engine:    opts.Engine,
		queue:     opts.Queue,
		rewriter:  opts.Rewriter,
		history:   opts.History,
		stream:    opts.Stream,
		publisher: opts.Publisher,
		archive:   opts.Archive,
		sessionID: opts.SessionID,
	}
	c.initMetrics()
	return c
}

func (c *Controller) initMetrics() {
	meter := otel.Meter("github.com/earshot-labs/earshot/pipeline")

	var err error
	c.uttCounter, err = meter.Int64Counter("earshot.utterances",
		metric.WithDescription("Finalized utterances recognized"))
	if err != nil {
		c.log.Warn("failed to create utterance counter", slog.String("error", err.Error()))
	}

	depth, err := meter.Int64ObservableGauge("earshot.queue.depth",
		metric.WithDescription("Chunks waiting in the transit queue"))
	if err != nil {
		c.log.Warn("failed to create queue depth gauge", slog.String("error", err.Error()))
		return
	}
	dropped, err := meter.Int64ObservableCounter("earshot.chunks.dropped",
		metric.WithDescription("Chunks lost to the queue overflow policy"))
	if err != nil {
		c.log.Warn("failed to create dropped chunk counter", slog.String("error", err.Error()))
		return
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(depth, int64(c.queue.Len()))
		o.ObserveInt64(dropped, int64(c.queue.Dropped()))
		return nil
	}, depth, dropped)
	if err != nil {
		c.log.Warn("failed to register queue metrics", slog.String("error", err.Error()))
	}
}

// State returns the loop's current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// UtteranceCount returns the number of finalized utterances so far. Safe
// from any goroutine.
func (c *Controller) UtteranceCount() int64 {
	return c.utterances.Load()
}

// Start opens the capture stream and spawns the consumer loop. A stream
// failure leaves the controller Stopped and the loop never starts.
func (c *Controller) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		return fmt.Errorf("recognition loop is %s, not stopped", c.State())
	}

	if err := c.stream.Start(); err != nil {
		c.state.Store(int32(Stopped))
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(runCtx)

	c.state.Store(int32(Listening))
	c.log.Info("listening", slog.String("session_id", c.sessionID))
	return nil
}

// Stop cancels the loop, closes the stream, and joins the consumer
// goroutine. The cancellation-aware Pop guarantees this returns promptly
// even when no audio has arrived. After Stop, history reads need no
// synchronization.
func (c *Controller) Stop() {
	if !c.state.CompareAndSwap(int32(Listening), int32(Stopping)) {
		return
	}

	c.cancel()
	if err := c.stream.Stop(); err != nil {
		c.log.Warn("stream stop failed", slog.String("error", err.Error()))
	}
	c.wg.Wait()

	c.state.Store(int32(Stopped))
	c.log.Info("recognition loop stopped",
		slog.Int64("utterances", c.utterances.Load()),
		slog.Uint64("chunks_dropped", c.queue.Dropped()))
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		pcm, ok := c.queue.Pop(ctx)
		if !ok {
			// Cancellation is the clean exit path, not an error.
			return
		}

		finalized, err := c.engine.AcceptChunk(pcm)
		if err != nil {
			c.log.Warn("engine rejected chunk", slog.String("error", err.Error()))
			continue
		}
		if !finalized {
			// Partial hypothesis, nothing to emit.
			continue
		}

		res, err := c.engine.Result()
		if err != nil {
			c.log.Warn("failed to fetch hypothesis", slog.String("error", err.Error()))
			continue
		}
		if res.Text == "" {
			continue
		}
		c.emit(ctx, res)
	}
}

func (c *Controller) emit(ctx context.Context, res recognizer.Result) {
	utt := protocol.Utterance{
		SessionID:  c.sessionID,
		Text:       c.rewriter.Apply(res.Text),
		Words:      toWireWords(res.Words),
		CapturedAt: time.Now().UTC(),
	}

	if res.Words == nil {
		c.log.Info("recognized", slog.String("text", utt.Text))
	} else if conf, err := MeanConfidence(res.Words); err != nil {
		// Present-but-empty word list: recover with a text-only record.
		c.log.Warn("confidence aggregation failed",
			slog.String("text", utt.Text),
			slog.String("error", err.Error()))
	} else {
		start, end, _ := Span(res.Words)
		utt.Scored = true
		utt.Confidence = conf
		utt.Start = start
		utt.End = end

		c.log.Info("recognized",
			slog.String("text", utt.Text),
			slog.Float64("confidence", conf),
			slog.Float64("start", start),
			slog.Float64("end", end))
		for _, w := range res.Words {
			if w.Conf < 0.8 {
				c.log.Debug("low confidence word",
					slog.String("word", w.Word),
					slog.Float64("conf", w.Conf),
					slog.Float64("start", w.Start),
					slog.Float64("end", w.End))
			}
		}
	}

	c.history.Append(utt)
	if c.archive != nil {
		if err := c.archive.AppendUtterance(ctx, utt); err != nil {
			c.log.Warn("failed to archive utterance", slog.String("error", err.Error()))
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishUtterance(utt); err != nil {
			c.log.Warn("failed to publish utterance", slog.String("error", err.Error()))
		}
	}

	c.utterances.Add(1)
	if c.uttCounter != nil {
		c.uttCounter.Add(ctx, 1)
	}
}

func toWireWords(words []recognizer.Word) []protocol.WordTiming {
	if words == nil {
		return nil
	}
	wire := make([]protocol.WordTiming, len(words))
	for i, w := range words {
		wire[i] = protocol.WordTiming{Word: w.Word, Start: w.Start, End: w.End, Conf: w.Conf}
	}
	return wire
}
