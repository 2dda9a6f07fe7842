package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"live-translator/internal/domain"
)

var ErrPipelineStopped = errors.New("pipeline is not running")

type PipelineConfig struct {
	QuietInterval    time.Duration
	Direction        domain.Direction
	DropStaleResults bool
	RequestTimeout   time.Duration
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		QuietInterval:    700 * time.Millisecond,
		Direction:        domain.ChineseToEnglish,
		DropStaleResults: true,
		RequestTimeout:   10 * time.Second,
	}
}

type command int

const (
	cmdStart command = iota
	cmdStop
	cmdToggle
	cmdReset
)

func (c command) String() string {
	switch c {
	case cmdStart:
		return "start"
	case cmdStop:
		return "stop"
	case cmdToggle:
		return "toggle"
	case cmdReset:
		return "reset"
	default:
		return "unknown"
	}
}

type commandEvent struct {
	ctx   context.Context
	cmd   command
	reply chan error
}

type debounceEvent struct {
	tick Tick
}

type resultEvent struct {
	seq      uint64
	sentence string
	langs    domain.Languages
	result   domain.TranslationResult
	err      error
}

// Pipeline turns the capture signal into ordered translation requests. All
// of its state is owned by the goroutine executing Run; everything else
// talks to it through the events channel.
type Pipeline struct {
	capture    Capture
	translator Translator
	speaker    Speaker
	display    DisplaySink
	logger     *slog.Logger
	cfg        PipelineConfig

	direction *domain.DirectionState
	scheduler *Scheduler
	events    chan any
	done      chan struct{}
	runOnce   sync.Once

	status        domain.Status
	transcript    string
	consumed      string
	lastSubmitted string
	seq           uint64
	applied       uint64
	inFlight      int
	view          domain.Display

	mu       sync.RWMutex
	snapshot domain.Display
}

// NewPipeline creates a pipeline in the Idle state.
func NewPipeline(
	capture Capture,
	translator Translator,
	speaker Speaker,
	display DisplaySink,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if speaker == nil {
		speaker = &NoopSpeaker{}
	}
	if display == nil {
		display = &NoopDisplay{}
	}
	if cfg.QuietInterval <= 0 {
		cfg.QuietInterval = DefaultPipelineConfig().QuietInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultPipelineConfig().RequestTimeout
	}

	p := &Pipeline{
		capture:    capture,
		translator: translator,
		speaker:    speaker,
		display:    display,
		logger:     logger,
		cfg:        cfg,
		direction:  domain.NewDirectionState(cfg.Direction),
		events:     make(chan any, 64),
		done:       make(chan struct{}),
		status:     domain.StatusIdle,
	}
	p.scheduler = NewScheduler(cfg.QuietInterval, func(t Tick) {
		p.post(debounceEvent{tick: t})
	})
	p.view = domain.Display{
		Status:     domain.StatusIdle,
		StatusText: domain.StatusText(domain.StatusIdle),
		Direction:  cfg.Direction.String(),
	}
	p.snapshot = p.view
	return p
}

// Snapshot returns the last published display state.
func (p *Pipeline) Snapshot() domain.Display {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

func (p *Pipeline) Direction() domain.Direction {
	return p.direction.Get()
}

// Start begins listening in the current direction.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.do(ctx, cmdStart)
}

// Stop ends listening and flushes the pending segment.
func (p *Pipeline) Stop(ctx context.Context) error {
	return p.do(ctx, cmdStop)
}

// ToggleDirection swaps source and target languages.
func (p *Pipeline) ToggleDirection(ctx context.Context) error {
	return p.do(ctx, cmdToggle)
}

// Reset clears the transcript and translation history.
func (p *Pipeline) Reset(ctx context.Context) error {
	return p.do(ctx, cmdReset)
}

// Run processes events until ctx is cancelled. It must be called once.
func (p *Pipeline) Run(ctx context.Context) error {
	started := false
	p.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("pipeline already running")
	}
	defer close(p.done)

	p.logger.Info("pipeline ready",
		"capture", p.capture.Name(),
		"direction", p.direction.Get().String(),
		"quiet_interval", p.scheduler.Interval(),
	)
	p.publish()

	signal := p.capture.Signal()
	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return ctx.Err()
		case t, ok := <-signal:
			if !ok {
				signal = nil
				continue
			}
			p.handleTranscript(t)
		case ev := <-p.events:
			p.handle(ctx, ev)
		}
	}
}

func (p *Pipeline) do(ctx context.Context, cmd command) error {
	reply := make(chan error, 1)
	select {
	case p.events <- commandEvent{ctx: ctx, cmd: cmd, reply: reply}:
	case <-p.done:
		return ErrPipelineStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-p.done:
		return ErrPipelineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) post(ev any) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *Pipeline) handle(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case commandEvent:
		e.reply <- p.handleCommand(e.ctx, e.cmd)
	case debounceEvent:
		p.handleDebounce(ctx, e.tick)
	case resultEvent:
		p.handleResult(ctx, e)
	}
}

func (p *Pipeline) handleCommand(ctx context.Context, cmd command) error {
	p.logger.Debug("control command", "command", cmd.String())

	switch cmd {
	case cmdStart:
		return p.startCapture(ctx)
	case cmdStop:
		return p.stopCapture(ctx)
	case cmdToggle:
		return p.toggleDirection(ctx)
	case cmdReset:
		p.scheduler.Cancel()
		p.clearBuffer()
		p.lastSubmitted = ""
		p.view.CurrentSentence = ""
		p.view.TranslatedText = ""
		p.view.Error = ""
		p.publish()
		return nil
	default:
		return fmt.Errorf("unknown command %d", cmd)
	}
}

func (p *Pipeline) startCapture(ctx context.Context) error {
	if p.status == domain.StatusListening {
		return nil
	}

	langs := p.direction.Current()
	err := p.capture.Start(ctx, CaptureOptions{Continuous: true, Language: langs.CaptureLanguage})
	if err != nil {
		p.setStatus(domain.StatusIdle)
		if errors.Is(err, domain.ErrCaptureUnsupported) {
			p.view.Error = domain.ErrCaptureUnsupported.Error()
		} else {
			p.view.Error = fmt.Sprintf("Failed to start listening: %s", err)
		}
		p.publish()
		return fmt.Errorf("starting capture: %w", err)
	}

	p.transcript = ""
	p.consumed = ""
	p.view.Transcript = ""
	p.view.Error = ""
	p.setStatus(domain.StatusListening)
	p.publish()

	p.logger.Info("listening", "language", langs.CaptureLanguage)
	return nil
}

func (p *Pipeline) stopCapture(ctx context.Context) error {
	if p.status != domain.StatusListening {
		return nil
	}

	p.scheduler.Cancel()
	err := p.capture.Stop(ctx)
	p.setStatus(domain.StatusIdle)
	p.publish()

	if err != nil {
		return fmt.Errorf("stopping capture: %w", err)
	}
	p.logger.Info("stopped listening")
	return nil
}

func (p *Pipeline) toggleDirection(ctx context.Context) error {
	dir := p.direction.Toggle()
	p.scheduler.Cancel()
	p.clearBuffer()
	p.lastSubmitted = ""
	p.view.Direction = dir.String()

	p.logger.Info("direction changed", "direction", dir.String())

	if p.status != domain.StatusListening {
		p.publish()
		return nil
	}

	// The old session must be fully stopped before the new one starts.
	if err := p.capture.Stop(ctx); err != nil {
		p.setStatus(domain.StatusIdle)
		p.view.Error = fmt.Sprintf("Failed to restart listening: %s", err)
		p.publish()
		return fmt.Errorf("stopping capture for restart: %w", err)
	}
	p.setStatus(domain.StatusIdle)

	return p.startCapture(ctx)
}

func (p *Pipeline) handleTranscript(t domain.Transcript) {
	if p.status != domain.StatusListening {
		return
	}
	if !t.Listening {
		p.captureLost()
		return
	}

	if !strings.HasPrefix(t.Text, p.consumed) {
		p.consumed = ""
	}
	p.transcript = t.Text

	buffer := p.buffer()
	p.view.Transcript = buffer
	p.publish()

	if strings.TrimSpace(buffer) == "" {
		return
	}
	p.scheduler.Schedule(buffer)
}

// captureLost handles a capture session that ended without a Stop. The
// capability is already gone, so only local state is unwound.
func (p *Pipeline) captureLost() {
	p.logger.Warn("capture ended while listening", "capture", p.capture.Name())
	p.scheduler.Cancel()
	p.clearBuffer()
	p.setStatus(domain.StatusIdle)
	p.view.Error = domain.ErrCaptureLost.Error()
	p.publish()
}

func (p *Pipeline) handleDebounce(ctx context.Context, tick Tick) {
	if !p.scheduler.Claim(tick) {
		return
	}
	if p.status != domain.StatusListening {
		return
	}

	sentence := domain.LastSentence(tick.Buffer)
	p.clearBuffer()
	p.publish()

	if sentence == "" {
		return
	}
	if sentence == p.lastSubmitted {
		p.logger.Debug("duplicate sentence, skipping", "sentence", sentence)
		return
	}

	langs := p.direction.Current()
	p.lastSubmitted = sentence
	p.seq++
	p.inFlight++
	p.view.Translating = true
	p.publish()

	p.logger.Info("translating", "seq", p.seq, "sentence", sentence, "source", langs.Source, "target", langs.Target)

	go p.translate(ctx, p.seq, sentence, langs)
}

func (p *Pipeline) translate(ctx context.Context, seq uint64, sentence string, langs domain.Languages) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	result, err := p.translator.Translate(reqCtx, sentence, langs.Source, langs.Target)
	p.post(resultEvent{
		seq:      seq,
		sentence: sentence,
		langs:    langs,
		result:   result,
		err:      err,
	})
}

func (p *Pipeline) handleResult(ctx context.Context, ev resultEvent) {
	p.inFlight--
	p.view.Translating = p.inFlight > 0

	if p.cfg.DropStaleResults && ev.seq < p.applied {
		p.logger.Warn("discarding out-of-order translation", "seq", ev.seq, "applied", p.applied)
		p.publish()
		return
	}

	if ev.err != nil {
		p.logger.Error("translating sentence", "seq", ev.seq, "sentence", ev.sentence, "error", ev.err)
		if p.lastSubmitted == ev.sentence {
			p.lastSubmitted = ""
		}
		p.view.Error = fmt.Sprintf("Failed to translate text: %s", ev.err)
		p.publish()
		return
	}

	p.applied = ev.seq
	p.view.CurrentSentence = ev.result.SourceSentence
	if p.view.CurrentSentence == "" {
		p.view.CurrentSentence = ev.sentence
	}
	p.view.TranslatedText = ev.result.TranslatedText
	p.view.Error = ""
	p.publish()

	p.logger.Info("translated", "seq", ev.seq, "translation", ev.result.TranslatedText)

	if err := p.speaker.Speak(ctx, ev.result.TranslatedText, ev.langs.SynthesisLanguage); err != nil {
		if errors.Is(err, domain.ErrPlaybackUnavailable) {
			p.logger.Debug("speech output unavailable", "error", err)
		} else {
			p.logger.Warn("speaking translation", "error", err)
		}
	}
}

func (p *Pipeline) shutdown() {
	p.scheduler.Cancel()
	if p.status != domain.StatusListening {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.capture.Stop(ctx); err != nil {
		p.logger.Warn("stopping capture on shutdown", "error", err)
	}
	p.setStatus(domain.StatusIdle)
	p.publish()
}

func (p *Pipeline) buffer() string {
	return p.transcript[len(p.consumed):]
}

func (p *Pipeline) clearBuffer() {
	p.consumed = p.transcript
	p.view.Transcript = ""
}

func (p *Pipeline) setStatus(s domain.Status) {
	p.status = s
	p.view.Status = s
	p.view.StatusText = domain.StatusText(s)
}

func (p *Pipeline) publish() {
	p.mu.Lock()
	p.snapshot = p.view
	p.mu.Unlock()
	p.display.Publish(p.view)
}
