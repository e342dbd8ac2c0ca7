// Package relay streams model output into a chat by editing a placeholder
// message as text deltas arrive.
//
// Edits are throttled: a partial render is flushed when EditInterval has
// passed since the last transport write, or when a delta shorter than
// SmallChunk runes arrives (such deltas usually end a sentence or the
// stream) and at least MinGap has passed. A rate-limited write is retried
// exactly once after the wait the transport asked for.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrNotModified is returned by a Messenger when an edit carried the text
// the message already has. The relay treats it as a successful write.
var ErrNotModified = errors.New("message is not modified")

// RateLimitError is returned by a Messenger when the transport refused a
// write because of flooding. RetryAfter is zero when no hint was given.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
}

type Options struct {
	EditInterval  time.Duration
	SmallChunk    int
	MinGap        time.Duration
	RetryWait     time.Duration
	MaxRetryWait  time.Duration
	MaxMessageLen int
	Placeholder   string
	EmptyText     string
}

func DefaultOptions() Options {
	return Options{
		EditInterval:  time.Second,
		SmallChunk:    4,
		MinGap:        250 * time.Millisecond,
		RetryWait:     3 * time.Second,
		MaxRetryWait:  30 * time.Second,
		MaxMessageLen: 4000,
		Placeholder:   "⏳ Thinking...",
		EmptyText:     "(empty response)",
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.EditInterval <= 0 {
		o.EditInterval = def.EditInterval
	}
	if o.MinGap < 0 {
		o.MinGap = 0
	}
	if o.RetryWait <= 0 {
		o.RetryWait = def.RetryWait
	}
	if o.MaxRetryWait <= 0 {
		o.MaxRetryWait = def.MaxRetryWait
	}
	if o.MaxMessageLen <= 0 {
		o.MaxMessageLen = def.MaxMessageLen
	}
	if o.Placeholder == "" {
		o.Placeholder = def.Placeholder
	}
	if o.EmptyText == "" {
		o.EmptyText = def.EmptyText
	}
	return o
}

// Relay renders one streamed answer. It is not safe for concurrent use.
type Relay struct {
	out    Messenger
	chatID int64
	opts   Options
	log    *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	text      strings.Builder
	pageStart int // byte offset in text where the current message begins
	messageID int
	rendered  string
	lastFlush time.Time
}

func New(out Messenger, chatID int64, opts Options, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		out:    out,
		chatID: chatID,
		opts:   opts.withDefaults(),
		log:    logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Start sends the placeholder. The first delta after it is flushed
// immediately.
func (r *Relay) Start(ctx context.Context) error {
	if err := r.render(ctx, r.opts.Placeholder); err != nil {
		return err
	}
	r.lastFlush = time.Time{}
	return nil
}

// Push appends a delta and flushes it if the throttle allows. Transport
// failures are logged and left for the next flush; only context errors are
// returned.
func (r *Relay) Push(ctx context.Context, delta string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delta == "" {
		return nil
	}

	r.text.WriteString(delta)
	if !r.shouldFlush(delta) {
		return nil
	}

	if err := r.flush(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.log.Warn("stream edit failed", "chat_id", r.chatID, "error", err)
	}
	return nil
}

// Finish writes the complete text regardless of the throttle and returns it.
func (r *Relay) Finish(ctx context.Context) (string, error) {
	full := r.text.String()
	if strings.TrimSpace(full) == "" {
		return "", r.render(ctx, r.opts.EmptyText)
	}
	return full, r.flush(ctx)
}

// Fail shows notice in place of the placeholder, or below the partial
// answer when some text was already streamed.
func (r *Relay) Fail(ctx context.Context, notice string) error {
	page := r.text.String()[r.pageStart:]
	if strings.TrimSpace(page) == "" {
		return r.render(ctx, notice)
	}

	combined := page + "\n\n" + notice
	if TextLen(combined) <= r.opts.MaxMessageLen {
		return r.render(ctx, combined)
	}

	if err := r.flush(ctx); err != nil {
		return err
	}
	r.messageID = 0
	r.rendered = ""
	return r.render(ctx, notice)
}

func (r *Relay) shouldFlush(delta string) bool {
	elapsed := r.now().Sub(r.lastFlush)
	if elapsed >= r.opts.EditInterval {
		return true
	}
	return utf8.RuneCountInString(delta) < r.opts.SmallChunk && elapsed >= r.opts.MinGap
}

func (r *Relay) flush(ctx context.Context) error {
	for {
		page := r.text.String()[r.pageStart:]
		if TextLen(page) <= r.opts.MaxMessageLen {
			return r.render(ctx, page)
		}

		head := cutPage(page, r.opts.MaxMessageLen)
		if err := r.render(ctx, head); err != nil {
			return err
		}
		r.pageStart += len(head)
		r.messageID = 0
		r.rendered = ""
	}
}

// render writes text into the current message, or sends a new one when
// there is no current message.
func (r *Relay) render(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if r.messageID != 0 && text == r.rendered {
		return nil
	}

	if r.messageID == 0 {
		var id int
		err := r.withRetry(ctx, func() error {
			var err error
			id, err = r.out.SendText(ctx, r.chatID, text)
			return err
		})
		if err != nil {
			return err
		}
		r.messageID = id
	} else {
		err := r.withRetry(ctx, func() error {
			return r.out.EditText(ctx, r.chatID, r.messageID, text)
		})
		if err != nil {
			return err
		}
	}

	r.rendered = text
	r.lastFlush = r.now()
	return nil
}

func (r *Relay) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || errors.Is(err, ErrNotModified) {
		return nil
	}

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		return err
	}

	wait := rl.RetryAfter
	if wait <= 0 {
		wait = r.opts.RetryWait
	}
	if wait > r.opts.MaxRetryWait {
		wait = r.opts.MaxRetryWait
	}
	r.log.Warn("transport rate limited, retrying once", "chat_id", r.chatID, "wait", wait.String())

	if err := r.sleep(ctx, wait); err != nil {
		return err
	}

	err = op()
	if errors.Is(err, ErrNotModified) {
		return nil
	}
	return err
}

// TextLen measures s the way Telegram applies its message length limit,
// in UTF-16 code units.
func TextLen(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// cutPage returns the longest prefix of page that is at most max UTF-16
// units long, shortened to end at a line break when one exists in the
// second half.
func cutPage(page string, max int) string {
	end, n := 0, 0
	for end < len(page) {
		r, size := utf8.DecodeRuneInString(page[end:])
		l := utf16.RuneLen(r)
		if l < 0 {
			l = 1
		}
		if n+l > max {
			break
		}
		n += l
		end += size
	}
	if end == len(page) {
		return page
	}
	if end == 0 {
		_, end = utf8.DecodeRuneInString(page)
	}
	head := page[:end]
	if idx := strings.LastIndex(head, "\n"); idx >= len(head)/2 {
		head = head[:idx+1]
	}
	return head
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
