package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/edgard/reelbot/internal/media"
)

// download tracks the fetch stage of a run so the audit record is written
// exactly once whatever path ends the run.
type download struct {
	ref         media.ContentRef
	contentType string
	recorded    bool
}

// HandleText runs the download pipeline for a free text message.
func (o *Orchestrator) HandleText(ctx context.Context, msg Message) {
	ctx, cancel := o.handlerContext(ctx)
	defer cancel()

	r := o.newRun("text", msg.ChatID, msg.From.TelegramUserID)
	var dl *download
	defer o.recoverRun(ctx, r, &dl)

	a := o.admit(ctx, r, msg.From)
	if a.verdict != admitted {
		text, markup := o.rejection(ctx, a)
		o.reply(ctx, r, text, markup)
		return
	}

	ref, ok := media.ExtractRef(msg.Text)
	if !ok {
		r.log.DebugContext(ctx, "No supported link in message")
		o.reply(ctx, r, o.cfg.Messages.InvalidLink, nil)
		return
	}

	dl = &download{ref: ref}
	o.runDownload(ctx, r, dl)
}

func (o *Orchestrator) runDownload(ctx context.Context, r *run, dl *download) {
	log := r.log.With("content_url", dl.ref.URL, "content_code", dl.ref.Code)
	log.InfoContext(ctx, "Processing link")

	id, err := o.client.SendMessage(ctx, r.chatID, o.cfg.Messages.Processing, nil)
	if err != nil {
		log.WarnContext(ctx, "Failed to send processing message", "error", err)
	} else {
		r.placeholder = id
	}

	dir, err := os.MkdirTemp(o.cfg.Media.TempDir, TempDirPrefix+"*")
	if err != nil {
		log.ErrorContext(ctx, "Failed to create download directory", "error", err)
		o.finish(ctx, r, dl, false, o.cfg.Messages.ErrGeneral, fmt.Sprintf("create temp dir: %v", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WarnContext(ctx, "Failed to remove download directory", "dir", dir, "error", err)
		}
	}()

	items, ferr := o.fetcher.Fetch(ctx, dl.ref, dir)
	if ferr != nil {
		log.WarnContext(ctx, "Fetch failed", "kind", ferr.Kind, "error", ferr)
		o.finish(ctx, r, dl, false, o.fetchFailureText(ferr.Kind), ferr.Error())
		return
	}
	dl.contentType = media.ContentType(items)

	res := o.delivery.Deliver(ctx, r.chatID, items, o.caption(ctx))
	if !res.OK() {
		log.WarnContext(ctx, "Delivery failed", "delivered", res.Delivered, "failed", res.Failed, "detail", res.Detail)
		o.finish(ctx, r, dl, false, o.cfg.Messages.ErrDelivery, res.Detail)
		return
	}

	log.InfoContext(ctx, "Media delivered", "items", len(items), "content_type", dl.contentType)
	o.finish(ctx, r, dl, true, o.cfg.Messages.Done, "")
}

// finish sends the terminal reply and writes the audit record.
func (o *Orchestrator) finish(ctx context.Context, r *run, dl *download, success bool, text, detail string) {
	o.reply(ctx, r, text, nil)
	if dl.recorded {
		return
	}
	dl.recorded = true
	o.recorder.Record(ctx, r.userID, dl.ref.URL, dl.contentType, success, detail)
}

// recoverRun turns a panic into the generic error reply. Runs that had
// reached the fetch stage are still recorded as failed.
func (o *Orchestrator) recoverRun(ctx context.Context, r *run, dl **download) {
	rec := recover()
	if rec == nil {
		return
	}
	logPanic(ctx, r, rec)

	if !r.replied {
		o.reply(ctx, r, o.cfg.Messages.ErrGeneral, nil)
	}
	if d := *dl; d != nil && !d.recorded {
		d.recorded = true
		o.recorder.Record(ctx, r.userID, d.ref.URL, d.contentType, false, fmt.Sprintf("panic: %v", rec))
	}
}

func logPanic(ctx context.Context, r *run, rec any) {
	r.log.ErrorContext(ctx, "Panic in pipeline", "panic", rec, "stack", string(debug.Stack()))
}

func (o *Orchestrator) fetchFailureText(kind media.FailureKind) string {
	msgs := o.cfg.Messages
	switch kind {
	case media.PrivateContent:
		return msgs.ErrPrivate
	case media.ContentMissing:
		return msgs.ErrMissing
	case media.LoginRequired:
		return msgs.ErrLoginRequired
	case media.ConnectionError:
		return msgs.ErrConnection
	case media.RateLimited:
		return msgs.ErrRateLimited
	case media.EmptyResult:
		return msgs.ErrEmpty
	default:
		return msgs.ErrGeneral
	}
}
