package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/cohort/internal/drip"
	"github.com/roach88/cohort/internal/engagement"
	"github.com/roach88/cohort/internal/ident"
	"github.com/roach88/cohort/internal/progress"
	"github.com/roach88/cohort/internal/reply"
	"github.com/roach88/cohort/internal/script"
	"github.com/roach88/cohort/internal/store"
	"github.com/roach88/cohort/internal/telemetry"
)

// State is the orchestrator's delivery state.
type State int

const (
	Idle State = iota
	Composing
	Sending
	SingleDelivery
	BurstDelivery
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Composing:
		return "composing"
	case Sending:
		return "sending"
	case SingleDelivery:
		return "single-delivery"
	case BurstDelivery:
		return "burst-delivery"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InFlight reports whether a reply sequence is running.
func (s State) InFlight() bool {
	return s == Sending || s == SingleDelivery || s == BurstDelivery
}

// MessageStore persists user messages and reply metadata.
type MessageStore interface {
	SaveMessage(ctx context.Context, m store.Message) error
	LoadMessages(ctx context.Context, userID string) ([]store.Message, error)
}

// FlagStore persists engagement snapshots. Loads return store.ErrNotFound
// for records never written.
type FlagStore interface {
	LoadFlags(ctx context.Context, userID string) (engagement.Flags, error)
	SaveFlags(ctx context.Context, userID string, f engagement.Flags) error
	LoadTally(ctx context.Context, userID, messageID string) (engagement.Tally, error)
	SaveTally(ctx context.Context, userID, messageID string, t engagement.Tally) error
}

// User identifies the viewer.
type User struct {
	ID        string
	FirstName string
	// Enrollment is nil when the enrollment instant is unknown; each
	// evaluation then treats its own now as the enrollment instant.
	Enrollment *time.Time
}

// Deps are the injected collaborators. Nil fields get production defaults.
type Deps struct {
	Replies   reply.Generator
	Messages  MessageStore
	Flags     FlagStore
	Telemetry telemetry.Sink
	Clock     Clock
	Sleeper   Sleeper
	Rand      Rand
	IDs       IDGenerator
	Logger    *slog.Logger
}

// Options configure one orchestrator.
type Options struct {
	Script        *script.Script
	User          User
	Schedule      drip.Schedule
	Pacing        Pacing
	Milestones    engagement.Milestones
	Progress      progress.Simulator
	ReactionKinds []engagement.Kind
}

// detachedTimeout bounds a fire-and-forget write.
const detachedTimeout = 10 * time.Second

// Orchestrator drives one viewer's transcript.
//
// Thread-safety: all exported methods are safe for concurrent use. Shared
// state is guarded by mu; the delivery sequence of a send runs in its own
// goroutine and is the only writer of replies.
type Orchestrator struct {
	deps       Deps
	opts       Options
	scriptHash string
	feed       *Feed

	life   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	draft      string
	typing     *script.Sender
	transcript []Message
	userMsgs   map[string]struct{}
	persisted  []Message
	closed     bool
	detached   map[string]int

	sessionStarted bool
	flags          *engagement.Flags

	// flagMu serializes read-modify-write of flags and tallies.
	flagMu sync.Mutex

	seq      sync.WaitGroup
	detachWG sync.WaitGroup
}

// New builds an orchestrator. It never fails: missing collaborators fall
// back to in-memory or no-op defaults.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Script == nil {
		opts.Script = script.Empty()
	}
	if deps.Replies == nil {
		deps.Replies = reply.NewScripted(opts.Script)
	}
	if deps.Messages == nil || deps.Flags == nil {
		mem := store.NewMemory()
		if deps.Messages == nil {
			deps.Messages = mem
		}
		if deps.Flags == nil {
			deps.Flags = mem
		}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Sleeper == nil {
		deps.Sleeper = TimerSleeper{}
	}
	if deps.Rand == nil {
		deps.Rand = NewRand(time.Now().UnixNano())
	}
	if deps.IDs == nil {
		deps.IDs = UUIDv7Generator{}
	}
	if opts.Schedule == (drip.Schedule{}) {
		opts.Schedule = drip.DefaultSchedule()
	}
	opts.Schedule.Vars = script.Vars{FirstName: opts.User.FirstName}
	opts.Pacing = opts.Pacing.withDefaults()
	if len(opts.Milestones.Thresholds) == 0 {
		opts.Milestones = engagement.DefaultMilestones()
	}
	if len(opts.ReactionKinds) == 0 {
		opts.ReactionKinds = engagement.DefaultKinds
	}

	life, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		deps:       deps,
		opts:       opts,
		scriptHash: opts.Script.Fingerprint(),
		feed:       NewFeed(),
		life:       life,
		cancel:     cancel,
		userMsgs:   make(map[string]struct{}),
		detached:   make(map[string]int),
	}
}

// Events returns the feed of render events.
func (o *Orchestrator) Events() *Feed {
	return o.feed
}

// State returns the current delivery state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Typing returns the responder currently shown as typing.
func (o *Orchestrator) Typing() (script.Sender, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.typing == nil {
		return script.Sender{}, false
	}
	return *o.typing, true
}

// Transcript returns a copy of the live transcript: messages sent or
// received through this orchestrator, in append order.
func (o *Orchestrator) Transcript() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// Draft records the composer contents. Non-empty text moves Idle to
// Composing and clearing it moves back. Drafting during a send is kept but
// does not change state.
func (o *Orchestrator) Draft(text string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return o.state
	}
	o.draft = text
	if !o.state.InFlight() {
		if strings.TrimSpace(text) == "" {
			o.state = Idle
		} else {
			o.state = Composing
		}
	}
	return o.state
}

func (o *Orchestrator) userSender() script.Sender {
	name := o.opts.User.FirstName
	if name == "" {
		name = "You"
	}
	return script.Sender{Key: UserKey, Name: name, Kind: script.SenderUser, Position: -1, Known: true}
}

// Submit sends text as the user.
//
// The user's message is appended to the transcript before Submit returns
// and before any network call. Persisting it and tracking it are detached.
// The reply sequence then runs in the background; Wait blocks until it is
// done.
//
// A submit while a sequence is in flight returns ErrSendInFlight and has no
// effect.
func (o *Orchestrator) Submit(ctx context.Context, text string) (Message, error) {
	text = ident.Normalize(strings.TrimSpace(text))
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Message{}, ErrClosed
	}
	if o.state.InFlight() {
		o.mu.Unlock()
		return Message{}, ErrSendInFlight
	}

	msg := fromSender(o.deps.IDs.Generate(), o.userSender(), text, o.deps.Clock.Now(), SourceUser)
	turn := len(o.userMsgs)
	o.userMsgs[msg.ID] = struct{}{}
	o.transcript = append(o.transcript, msg)
	o.state = Sending
	o.draft = ""
	req := reply.Request{
		UserID:      o.opts.User.ID,
		FirstName:   o.opts.User.FirstName,
		UserMessage: text,
		Recent:      reply.Recent(o.turnsLocked()),
		Roster:      o.opts.Script.Personas,
		ElapsedDays: o.elapsedDays(msg.At),
		Turn:        turn,
	}
	o.seq.Add(1)
	o.mu.Unlock()

	o.feed.Publish(Event{Kind: EventAppended, Message: &msg})
	o.persist(ctx, "persist-message", msg)
	o.track(ctx, telemetry.Event{
		Name:  telemetry.MessageSent,
		Props: map[string]string{"message_id": msg.ID, "turn": fmt.Sprint(turn)},
	})

	o.deps.Logger.Debug("message submitted", "user_id", o.opts.User.ID, "message_id", msg.ID, "turn", turn)

	go o.deliver(msg, req)
	return msg, nil
}

// turnsLocked renders the merged transcript as generator context.
func (o *Orchestrator) turnsLocked() []reply.Turn {
	msgs := mergeMessages(o.persisted, o.transcript)
	turns := make([]reply.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = reply.Turn{SenderKey: m.SenderKey, SenderName: m.SenderName, Content: m.Content, At: m.At}
	}
	return turns
}

func (o *Orchestrator) elapsedDays(now time.Time) int {
	if o.opts.User.Enrollment == nil {
		return 0
	}
	return drip.ElapsedDays(*o.opts.User.Enrollment, now, o.opts.Schedule.Location)
}

// deliver runs one reply sequence. It owns the in-flight state until it
// returns.
func (o *Orchestrator) deliver(userMsg Message, req reply.Request) {
	defer o.seq.Done()
	defer o.finish()

	callCtx, cancel := context.WithTimeout(o.life, o.opts.Pacing.ReplyTimeout)
	resp, err := o.deps.Replies.Generate(callCtx, req)
	cancel()
	if err == nil {
		err = resp.Validate()
	}
	if o.life.Err() != nil {
		return
	}
	if err != nil {
		o.deps.Logger.Warn("reply generation failed, sending fallback",
			"user_id", o.opts.User.ID, "message_id", userMsg.ID, "error", err)
		o.fallback(userMsg)
		return
	}

	if resp.IsBurst() {
		o.burst(userMsg, resp.Burst)
		return
	}
	o.single(userMsg, *resp.Single)
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.state = Idle
	if strings.TrimSpace(o.draft) != "" && !o.closed {
		o.state = Composing
	}
	o.typing = nil
	closed := o.closed
	o.mu.Unlock()
	if !closed {
		o.feed.Publish(Event{Kind: EventIdle})
	}
}

func (o *Orchestrator) sleep(d time.Duration) bool {
	if err := o.deps.Sleeper.Sleep(o.life, d); err != nil {
		return false
	}
	return o.life.Err() == nil
}

func (o *Orchestrator) setTyping(s *script.Sender) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.typing = s
	o.mu.Unlock()
	if s != nil {
		o.feed.Publish(Event{Kind: EventTyping, Typing: s})
	} else {
		o.feed.Publish(Event{Kind: EventTypingCleared})
	}
}

// appendReply adds m unless the orchestrator has been closed meanwhile.
func (o *Orchestrator) appendReply(m Message) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.deps.Logger.Debug("append abandoned after close", "message_id", m.ID)
		return false
	}
	o.transcript = append(o.transcript, m)
	o.mu.Unlock()

	o.feed.Publish(Event{Kind: EventAppended, Message: &m})
	o.persist(o.life, "persist-reply", m)
	return true
}

func (o *Orchestrator) replyMessage(userMsg Message, index int, responder string, content string, src Source) Message {
	sender := o.opts.Script.Resolve(responder)
	id := fmt.Sprintf("%s/r%d", userMsg.ID, index)
	if src == SourceFallback {
		id = userMsg.ID + "/fallback"
	}
	m := fromSender(id, sender, ident.Normalize(content), o.deps.Clock.Now(), src)
	m.ReplyTo = userMsg.ID
	return m
}

func (o *Orchestrator) single(userMsg Message, item reply.Item) {
	o.setState(SingleDelivery)
	if !o.sleep(Draw(o.deps.Rand, o.opts.Pacing.ReadDelay)) {
		return
	}
	sender := o.opts.Script.Resolve(item.ResponderID)
	o.setTyping(&sender)
	if !o.sleep(Draw(o.deps.Rand, o.opts.Pacing.TypingDelay)) {
		return
	}
	o.appendReply(o.replyMessage(userMsg, 0, item.ResponderID, item.Content, SourceReply))
}

// burst delivers items strictly in order: typing, the item's own delay,
// append, clear, pause.
func (o *Orchestrator) burst(userMsg Message, items []reply.Item) {
	o.setState(BurstDelivery)
	for i, item := range items {
		sender := o.opts.Script.Resolve(item.ResponderID)
		o.setTyping(&sender)
		if !o.sleep(item.Delay()) {
			return
		}
		if !o.appendReply(o.replyMessage(userMsg, i, item.ResponderID, item.Content, SourceReply)) {
			return
		}
		o.setTyping(nil)
		if i < len(items)-1 && !o.sleep(o.opts.Pacing.BurstPause) {
			return
		}
	}
}

// fallback appends the script's fallback line, always attributed to the
// mentor, after a short fixed delay.
func (o *Orchestrator) fallback(userMsg Message) {
	o.setState(SingleDelivery)
	if !o.sleep(o.opts.Pacing.FallbackDelay) {
		return
	}
	line := o.opts.Script.FallbackLine()
	content := script.Substitute(line.Content, o.opts.Schedule.Vars)
	o.appendReply(o.replyMessage(userMsg, 0, script.MentorKey, content, SourceFallback))
}

// Close tears the orchestrator down. A pending sequence abandons its next
// append; detached writes already scheduled still run. Close is idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.typing = nil
	o.mu.Unlock()

	o.cancel()
	o.feed.Close()
}

// Wait blocks until the in-flight reply sequence, if any, has returned.
func (o *Orchestrator) Wait() {
	o.seq.Wait()
}

// WaitDetached blocks until every detached task has finished.
func (o *Orchestrator) WaitDetached() {
	o.detachWG.Wait()
}

// Detached reports how many detached tasks of each name were scheduled.
func (o *Orchestrator) Detached() map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]int, len(o.detached))
	for k, v := range o.detached {
		out[k] = v
	}
	return out
}

// detach runs fn on its own goroutine with a context that outlives ctx's
// cancellation but not detachedTimeout.
func (o *Orchestrator) detach(ctx context.Context, name string, fn func(ctx context.Context)) {
	o.mu.Lock()
	o.detached[name]++
	o.mu.Unlock()

	o.detachWG.Add(1)
	go func() {
		defer o.detachWG.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
		defer cancel()
		fn(dctx)
	}()
}

func (o *Orchestrator) persist(ctx context.Context, name string, m Message) {
	row := toStored(o.opts.User.ID, o.scriptHash, m)
	o.detach(ctx, name, func(ctx context.Context) {
		if err := o.deps.Messages.SaveMessage(ctx, row); err != nil {
			o.deps.Logger.Warn("message save failed",
				"user_id", o.opts.User.ID, "message_id", row.ID, "error", err)
		}
	})
}

func (o *Orchestrator) track(ctx context.Context, ev telemetry.Event) {
	if ev.UserID == "" {
		ev.UserID = o.opts.User.ID
	}
	if ev.At.IsZero() {
		ev.At = o.deps.Clock.Now()
	}
	o.detach(ctx, "telemetry", func(ctx context.Context) {
		telemetry.Send(ctx, o.deps.Telemetry, ev, o.deps.Logger)
	})
}
