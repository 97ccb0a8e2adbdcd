package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/config"
	"github.com/roach88/cohort/internal/delivery"
	"github.com/roach88/cohort/internal/engagement"
	"github.com/roach88/cohort/internal/random"
	"github.com/roach88/cohort/internal/reply"
	"github.com/roach88/cohort/internal/script"
	"github.com/roach88/cohort/internal/store"
	"github.com/roach88/cohort/internal/telemetry"
)

// ChatOptions holds flags for the chat command.
type ChatOptions struct {
	*RootOptions
	UserID      string
	FirstName   string
	Enrolled    string
	Database    string
	Memory      bool
	ReplyURL    string
	MetricsAddr string
	Percent     int
}

const chatHelp = `commands:
  /react <message-id> <like|heart>  toggle a reaction
  /board                            show the leaderboard
  /progress <percent>               report course progress
  /transcript                       reprint the transcript
  /quit                             leave`

// NewChatCommand creates the chat command.
func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "chat [script]",
		Short: "Chat with the cohort in the terminal",
		Long: `Open an interactive session as one user: apply the visit streak, show the
revealed feed and persisted history, then send messages and watch the
cohort reply.

Messages, streaks, milestones and reactions are kept in the SQLite
database given by --db (or COHORT_DB) unless --memory is set.

Example:
  cohort chat cohort.yaml --user-id u1 --first-name Ada --enrolled 2026-03-02
  cohort chat --memory --reply-url http://localhost:8080/reply`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user-id", "local", "viewer id")
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "viewer first name")
	cmd.Flags().StringVar(&opts.Enrolled, "enrolled", "", "enrollment instant (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default COHORT_DB)")
	cmd.Flags().BoolVar(&opts.Memory, "memory", false, "keep state in memory only")
	cmd.Flags().StringVar(&opts.ReplyURL, "reply-url", "", "reply generator endpoint (default COHORT_REPLY_URL, scripted replies if empty)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default COHORT_METRICS_ADDR)")
	cmd.Flags().IntVar(&opts.Percent, "percent", -1, "course progress to check for milestones at start")

	return cmd
}

// stores bundles the message and flag stores with their cleanup.
type stores struct {
	messages delivery.MessageStore
	flags    delivery.FlagStore
	close    func() error
}

func openStores(opts *ChatOptions, cfg config.Config, logger *slog.Logger) (stores, error) {
	if opts.Memory {
		mem := store.NewMemory()
		return stores{messages: mem, flags: mem, close: func() error { return nil }}, nil
	}
	path := opts.Database
	if path == "" {
		path = cfg.DB
	}
	logger.Info("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return stores{}, err
	}
	return stores{messages: st, flags: st, close: st.Close}, nil
}

func replyGenerator(opts *ChatOptions, cfg config.Config, s *script.Script) (reply.Generator, error) {
	url := opts.ReplyURL
	if url == "" {
		url = cfg.ReplyURL
	}
	if url == "" {
		return reply.NewScripted(s), nil
	}
	return reply.NewHTTPClient(url, nil)
}

func runChat(opts *ChatOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	path, err := scriptPath(args, cfg, formatter)
	if err != nil {
		return err
	}
	// A broken script degrades to an empty feed; chat still works.
	s := script.LoadOrEmpty(path, logger)

	sched, err := cfg.Schedule()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), err)
	}
	var enrolled *time.Time
	if opts.Enrolled != "" {
		t, err := parseInstant(opts.Enrolled, sched.Location, time.Now())
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeFlag, err.Error(), err)
		}
		enrolled = &t
	}

	st, err := openStores(opts, cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	gen, err := replyGenerator(opts, cfg, s)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), err)
	}
	seed, err := random.Resolve(cfg.Seed)
	if err != nil {
		return WrapExitError(ExitCommandError, "seed random source", err)
	}

	// Use command's context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sink := telemetry.Multi{telemetry.NewLogSink(logger)}
	metricsAddr := opts.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	if metricsAddr != "" {
		metrics, err := telemetry.NewMetrics()
		if err != nil {
			return WrapExitError(ExitCommandError, "create metrics", err)
		}
		sink = append(sink, metrics)
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	o := delivery.New(delivery.Deps{
		Replies:   gen,
		Messages:  st.messages,
		Flags:     st.flags,
		Telemetry: sink,
		Rand:      delivery.NewRand(seed),
		Logger:    logger,
	}, delivery.Options{
		Script:   s,
		User:     delivery.User{ID: opts.UserID, FirstName: opts.FirstName, Enrollment: enrolled},
		Schedule: sched,
		Pacing:   cfg.Pacing(),
		Progress: cfg.Simulator(),
	})
	defer func() {
		o.Close()
		o.WaitDetached()
	}()

	sess := &chatSession{o: o, out: formatter.Writer, loc: sched.Location, percent: max(opts.Percent, 0)}
	return sess.run(ctx, cmd.InOrStdin(), opts.Percent)
}

// chatSession is the terminal renderer of one orchestrator.
type chatSession struct {
	o       *delivery.Orchestrator
	out     io.Writer
	loc     *time.Location
	percent int
}

func (c *chatSession) run(ctx context.Context, in io.Reader, startPercent int) error {
	if _, err := c.o.StartSession(ctx); err != nil {
		return WrapExitError(ExitCommandError, "start session", err)
	}
	if startPercent >= 0 {
		if _, _, err := c.o.CheckMilestone(ctx, startPercent); err != nil {
			return WrapExitError(ExitCommandError, "check milestone", err)
		}
	}
	c.flush()
	if err := c.printTranscript(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "type a message, or /help")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (c *chatSession) handle(ctx context.Context, line string) (quit bool, err error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, c.send(ctx, line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/transcript":
		return false, c.printTranscript(ctx)
	case "/board":
		writeLeaderboard(&OutputFormatter{Writer: c.out}, c.o.Leaderboard(time.Now(), c.percent))
	case "/progress":
		if len(fields) != 2 {
			fmt.Fprintln(c.out, "usage: /progress <percent>")
			return false, nil
		}
		p, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintf(c.out, "not a percent: %q\n", fields[1])
			return false, nil
		}
		c.percent = p
		if _, ok, err := c.o.CheckMilestone(ctx, p); err != nil {
			fmt.Fprintf(c.out, "milestone check failed: %v\n", err)
		} else if !ok {
			fmt.Fprintf(c.out, "progress %d%%\n", p)
		}
		c.flush()
	case "/react":
		if len(fields) != 3 {
			fmt.Fprintln(c.out, "usage: /react <message-id> <like|heart>")
			return false, nil
		}
		t, err := c.o.ToggleReaction(ctx, fields[1], engagement.Kind(fields[2]))
		if err != nil {
			fmt.Fprintf(c.out, "reaction failed: %v\n", err)
			return false, nil
		}
		fmt.Fprintf(c.out, "%s: %s\n", fields[1], formatTally(t))
	default:
		fmt.Fprintf(c.out, "unknown command %s\n", fields[0])
	}
	return false, nil
}

// send submits text and renders the reply sequence as it happens.
func (c *chatSession) send(ctx context.Context, text string) error {
	if _, err := c.o.Submit(ctx, text); err != nil {
		if errors.Is(err, delivery.ErrSendInFlight) {
			fmt.Fprintln(c.out, "still replying, hold on")
			return nil
		}
		fmt.Fprintf(c.out, "not sent: %v\n", err)
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.o.Wait()
		close(done)
	}()
	for {
		select {
		case <-ctx.Done():
			c.flush()
			return nil
		case <-c.o.Events().Wait():
			c.flush()
		case <-done:
			c.flush()
			return nil
		}
	}
}

func (c *chatSession) printTranscript(ctx context.Context) error {
	msgs, err := c.o.Evaluate(ctx, time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "evaluate feed", err)
	}
	for _, m := range msgs {
		c.printMessage(m)
	}
	if next, ok := c.o.NextReveal(time.Now()); ok {
		fmt.Fprintf(c.out, "-- more from the cohort %s --\n", next.In(c.loc).Format("Mon Jan 2 15:04"))
	}
	return nil
}

func (c *chatSession) printMessage(m delivery.Message) {
	fmt.Fprintf(c.out, "[%s] %s: %s  (%s)\n", m.At.In(c.loc).Format("Jan 2 15:04"), m.SenderName, m.Content, m.ID)
}

// flush renders every queued event. The user's own messages are not echoed.
func (c *chatSession) flush() {
	for _, ev := range c.o.Events().Drain() {
		switch ev.Kind {
		case delivery.EventAppended:
			if ev.Message == nil || ev.Message.Source == delivery.SourceUser {
				continue
			}
			c.printMessage(*ev.Message)
		case delivery.EventTyping:
			if ev.Typing != nil {
				fmt.Fprintf(c.out, "  %s is typing...\n", ev.Typing.Name)
			}
		case delivery.EventStreak:
			fmt.Fprintf(c.out, "streak: %d day(s)\n", ev.Streak)
		case delivery.EventMilestone:
			fmt.Fprintf(c.out, "milestone reached: %d%%\n", ev.Milestone)
		}
	}
}

func formatTally(t engagement.Tally) string {
	parts := make([]string, 0, len(engagement.DefaultKinds)+1)
	for _, k := range engagement.DefaultKinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, t.Count(k)))
	}
	if t.Choice != "" {
		parts = append(parts, fmt.Sprintf("(you: %s)", t.Choice))
	}
	return strings.Join(parts, " ")
}
