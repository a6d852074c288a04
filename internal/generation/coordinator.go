package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"inkflow-backend/internal/config"
	"inkflow-backend/internal/model"
	"inkflow-backend/internal/notify"
	"inkflow-backend/internal/sse"
	"inkflow-backend/internal/storage"
	"inkflow-backend/internal/transport"
	"inkflow-backend/pkg/logger"

	"github.com/google/uuid"
)

// State of a generation run. Completed, Cancelled and Failed are terminal
// for the run instance; a new start creates a new run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// ChannelName is the fixed broadcast channel shared by every browsing
// context watching the current generation.
const ChannelName = "generation"

var ErrNoPrompt = errors.New("prompt is required")

// Coordinator owns the single active generation run. Starting a new run
// supersedes the previous one and aborts its transport; that is the only
// mutual-exclusion rule between runs.
type Coordinator struct {
	cfg    *config.Config
	client *transport.Client
	store  storage.Store
	bus    *notify.Bus

	mu      sync.Mutex
	active  *Run
	viewers int
}

func NewCoordinator(cfg *config.Config, client *transport.Client, store storage.Store, bus *notify.Bus) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		client: client,
		store:  store,
		bus:    bus,
	}
}

// StartGeneration opens a fresh run for one prompt fanned out to streamCount
// streams. All buffers start empty; any persisted snapshot from an earlier
// run is overwritten regardless of its stream count.
func (c *Coordinator) StartGeneration(prompt string, streamCount, maxTokens int) (*Run, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrNoPrompt
	}
	if streamCount <= 0 {
		streamCount = c.cfg.Generation.DefaultStreamCount
	}
	if streamCount > c.cfg.Generation.MaxStreamCount {
		streamCount = c.cfg.Generation.MaxStreamCount
	}
	if maxTokens <= 0 {
		maxTokens = c.cfg.Generation.MaxTokens
	}

	req := model.GenerationRequest{
		Prompts:     []string{prompt},
		StreamCount: streamCount,
		MaxTokens:   maxTokens,
		Sampling:    c.sampling(),
	}
	return c.start(req, nil)
}

// ContinueGeneration resumes all streams with their accumulated contents as
// context: one prompt per stream and a larger token budget. Buffers are
// seeded so the final persisted content reads context + "\n\n" + new text.
func (c *Coordinator) ContinueGeneration(contents []string) (*Run, error) {
	if len(contents) == 0 {
		return nil, ErrNoPrompt
	}

	seeds := make([]string, len(contents))
	for i, content := range contents {
		seeds[i] = content + "\n\n"
	}

	req := model.GenerationRequest{
		Prompts:     append([]string(nil), contents...),
		StreamCount: len(contents),
		MaxTokens:   c.cfg.Generation.ContinueMaxTokens,
		Sampling:    c.sampling(),
	}
	return c.start(req, seeds)
}

func (c *Coordinator) start(req model.GenerationRequest, seeds []string) (*Run, error) {
	ctx, cancel := context.WithCancel(context.Background())

	run := &Run{
		ID:        uuid.New().String(),
		Request:   req,
		StartedAt: time.Now(),
		coord:     c,
		cancel:    cancel,
		channel:   c.bus.Channel(ChannelName),
		state:     StateRunning,
		results:   make([]model.StreamResult, req.StreamCount),
		events:    make(chan model.ProgressEvent, 256),
		done:      make(chan struct{}),
	}
	for i := range run.results {
		run.results[i] = model.StreamResult{ID: uuid.New().String(), IsLoading: true}
		if i < len(seeds) {
			run.results[i].Content = seeds[i]
		}
	}

	run.demux = NewDemux(req.StreamCount, run.onProgress)
	if len(seeds) > 0 {
		run.demux.Seed(seeds)
	}
	run.sched = NewScheduler(
		c.cfg.Generation.FlushThreshold,
		c.cfg.Generation.ThrottleInterval,
		run.applyFlush,
	)

	c.mu.Lock()
	prev := c.active
	c.active = run
	c.mu.Unlock()

	// Supersede: the previous run loses the live transport and, once it
	// observes the abort, tears itself down without touching the store.
	if prev != nil {
		prev.cancel()
	}

	if err := c.store.SaveNow(run.snapshot()); err != nil {
		logger.Errorf("Failed to reset persisted snapshot: %v", err)
	}

	logger.Infof("Generation run %s started: %d streams, %d max tokens", run.ID, req.StreamCount, req.MaxTokens)

	wire := model.NewCompletionRequest(req, c.cfg.Backend.Password)
	go run.loop(ctx, wire)

	return run, nil
}

// Cancel aborts the active run's transport. Buffered content is still
// flushed; the stop is not surfaced as a failure.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	run := c.active
	c.mu.Unlock()

	if run == nil || run.State() != StateRunning {
		return false
	}
	run.cancel()
	return true
}

// Snapshot reconciles the persisted result set with the live run's state.
// Store writes and broadcast messages are eventually-consistent views of the
// same content, so the longer content per index wins.
func (c *Coordinator) Snapshot() []model.StreamResult {
	persisted, err := c.store.Load()
	if err != nil {
		persisted = nil
	}

	c.mu.Lock()
	run := c.active
	c.mu.Unlock()
	if run == nil {
		return persisted
	}

	live := run.snapshot()
	if len(persisted) != len(live) {
		return live
	}
	for i := range live {
		if len(persisted[i].Content) > len(live[i].Content) {
			live[i].Content = persisted[i].Content
		}
	}
	return live
}

func (c *Coordinator) Status() model.RunStatus {
	c.mu.Lock()
	run := c.active
	viewers := c.viewers
	c.mu.Unlock()

	if run == nil {
		return model.RunStatus{State: string(StateIdle), Viewers: viewers}
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return model.RunStatus{
		RunID:       run.ID,
		State:       string(run.state),
		StreamCount: run.Request.StreamCount,
		TotalTokens: run.totalTokens,
		TokenRate:   run.tokenRate,
		Viewers:     viewers,
	}
}

// SubscribeChannel returns the live broadcast channel for the fixed name,
// creating a fresh one if the previous run's channel has been closed.
func (c *Coordinator) SubscribeChannel() *notify.Channel {
	return c.bus.Channel(ChannelName)
}

// ViewerReady records a detail-view context announcing itself and republishes
// the announcement. Generation never waits on viewers; the count only feeds
// a live-update indicator.
func (c *Coordinator) ViewerReady(index int) {
	c.mu.Lock()
	c.viewers++
	c.mu.Unlock()

	idx := index
	c.bus.Channel(ChannelName).Publish(model.ChannelMessage{
		Type:  model.MessageDetailReady,
		Index: &idx,
	})
}

func (c *Coordinator) ViewerGone() {
	c.mu.Lock()
	if c.viewers > 0 {
		c.viewers--
	}
	c.mu.Unlock()
}

// Shutdown cancels the active run and waits for its teardown (final flush
// and forced snapshot save) or the context deadline.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	run := c.active
	c.mu.Unlock()

	if run == nil {
		return
	}
	run.cancel()
	select {
	case <-run.done:
	case <-ctx.Done():
		logger.Warn("Shutdown timed out waiting for active run teardown")
	}
}

func (c *Coordinator) isActive(run *Run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active == run
}

func (c *Coordinator) sampling() model.SamplingParams {
	s := c.cfg.Backend.Sampling
	return model.SamplingParams{
		Temperature:    s.Temperature,
		TopK:           s.TopK,
		TopP:           s.TopP,
		AlphaPresence:  s.AlphaPresence,
		AlphaFrequency: s.AlphaFrequency,
		AlphaDecay:     s.AlphaDecay,
		ChunkSize:      s.ChunkSize,
	}
}

// Run is one generation lifecycle: one transport stream demultiplexed into
// N buffers, with throttled flushes to the store and the broadcast channel.
type Run struct {
	ID        string
	Request   model.GenerationRequest
	StartedAt time.Time

	coord   *Coordinator
	demux   *Demux
	sched   *Scheduler
	cancel  context.CancelFunc
	channel *notify.Channel

	mu          sync.Mutex
	state       State
	results     []model.StreamResult
	totalTokens int
	tokenRate   int

	events chan model.ProgressEvent
	done   chan struct{}
}

// Events streams progress callbacks to the initiating context. The channel
// closes when the run reaches a terminal state. Slow consumers miss
// intermediate events; every event carries full content, so that is safe.
func (r *Run) Events() <-chan model.ProgressEvent {
	return r.events
}

// Done closes after terminal teardown completes.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) loop(ctx context.Context, wire model.CompletionRequest) {
	chunks, result, err := r.coord.client.Stream(ctx, wire)
	if err != nil {
		if errors.Is(err, transport.ErrAborted) {
			r.finish(StateCancelled, nil)
			return
		}
		r.finish(StateFailed, err)
		return
	}

	dec := sse.NewDecoder()
	for chunk := range chunks {
		for _, ev := range dec.Feed(chunk) {
			r.demux.Apply(ev)
		}
	}

	err = <-result
	switch {
	case err == nil:
		for _, ev := range dec.Flush() {
			r.demux.Apply(ev)
		}
		r.demux.Finish()
		r.finish(StateCompleted, nil)
	case errors.Is(err, transport.ErrAborted):
		r.finish(StateCancelled, nil)
	default:
		r.finish(StateFailed, err)
	}
}

// onProgress is the demultiplexer's callback: it feeds the scheduler, keeps
// the run's metric mirror current and forwards the event to the initiator.
func (r *Run) onProgress(index int, content string, complete bool, rate, total int) {
	r.mu.Lock()
	r.totalTokens = total
	r.tokenRate = rate
	if complete && index >= 0 && index < len(r.results) {
		r.results[index].IsLoading = false
	}
	r.mu.Unlock()

	r.sched.Offer(index, content, complete)

	ev := model.ProgressEvent{
		Index:       index,
		Content:     content,
		Complete:    complete,
		TokenRate:   rate,
		TotalTokens: total,
	}
	select {
	case r.events <- ev:
	default:
	}
}

// applyFlush is the scheduler's flush target: apply the buffer snapshots to
// the externally visible result state, broadcast one UPDATE_CONTENT per
// index, and persist. A superseded run still drains its broadcasts but no
// longer touches the store, which now belongs to the newer run.
func (r *Run) applyFlush(updates map[int]string) {
	r.mu.Lock()
	for i, content := range updates {
		if i < 0 || i >= len(r.results) {
			continue
		}
		r.results[i].Content = content
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	for i, content := range updates {
		idx := i
		r.channel.Publish(model.ChannelMessage{
			Type:    model.MessageUpdateContent,
			Index:   &idx,
			Content: content,
		})
	}

	if !r.coord.isActive(r) {
		return
	}
	if err := r.coord.store.Save(snapshot); err != nil {
		logger.Errorf("Failed to persist snapshot: %v", err)
	}
}

// finish performs the single terminal transition for this run. It is
// idempotent: cancellation racing a natural stream end resolves to whichever
// transition gets here first.
func (r *Run) finish(state State, cause error) {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return
	}
	r.state = state
	for i := range r.results {
		r.results[i].IsLoading = false
	}
	r.mu.Unlock()

	// Whatever is buffered goes out before the terminal signal; partial
	// content is never rolled back.
	r.sched.Flush()
	r.sched.Stop()

	if r.coord.isActive(r) {
		if err := r.coord.store.SaveNow(r.snapshot()); err != nil {
			logger.Errorf("Failed to persist final snapshot: %v", err)
		}
	}

	linger := r.coord.cfg.Generation.CloseLinger
	switch state {
	case StateCompleted:
		logger.Infof("Generation run %s completed, %d tokens", r.ID, r.demux.TotalTokens())
		r.channel.Publish(model.ChannelMessage{Type: model.MessageGenerationComplete})
		r.channel.CloseAfter(linger)
	case StateFailed:
		logger.Errorf("Generation run %s failed: %v", r.ID, cause)
		r.channel.Publish(model.ChannelMessage{Type: model.MessageGenerationError, Content: cause.Error()})
		r.channel.CloseAfter(linger)
	case StateCancelled:
		// A plain stop broadcasts nothing; messages already queued drain on
		// the open channel.
		logger.Infof("Generation run %s cancelled", r.ID)
	}

	close(r.events)
	close(r.done)
}

func (r *Run) snapshot() []model.StreamResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Run) snapshotLocked() []model.StreamResult {
	return append([]model.StreamResult(nil), r.results...)
}
