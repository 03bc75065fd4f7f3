// Package telegramtest provides an in-memory telegram.Client for tests.
package telegramtest

import (
	"context"
	"io"
	"sync"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/reelbot/internal/telegram"
)

// Operation names recorded by Fake.
const (
	OpGetChatMember  = "getChatMember"
	OpSendMessage    = "sendMessage"
	OpEditMessage    = "editMessage"
	OpAnswerCallback = "answerCallback"
	OpSendPhoto      = "sendPhoto"
	OpSendVideo      = "sendVideo"
	OpSendMediaGroup = "sendMediaGroup"
)

// SentFile is an Upload as the fake received it.
type SentFile struct {
	Filename string
	Video    bool
	Caption  string
	Data     []byte
}

// Call is one recorded Client invocation.
type Call struct {
	Op         string
	ChatID     int64
	UserID     int64
	MessageID  int
	Text       string
	Markup     models.ReplyMarkup
	CallbackID string
	Alert      bool
	Files      []SentFile
}

// Fake records every call. Queued errors are returned in order for their
// operation; once the queue is empty calls succeed.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	errs    map[string][]error
	nextID  int
	Members map[int64]*telegram.Member
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		errs:    make(map[string][]error),
		Members: make(map[int64]*telegram.Member),
		nextID:  100,
	}
}

var _ telegram.Client = (*Fake)(nil)

// QueueError makes the next call of op fail with err.
func (f *Fake) QueueError(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], err)
}

// SetMember sets the membership record returned for userID.
func (f *Fake) SetMember(userID int64, status models.ChatMemberType, isMember bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Members[userID] = &telegram.Member{Status: status, IsMember: isMember}
}

// Calls returns recorded calls, filtered by op when any are given.
func (f *Fake) Calls(ops ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ops) == 0 {
		return append([]Call(nil), f.calls...)
	}
	var out []Call
	for _, c := range f.calls {
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Replies returns the texts of every sendMessage and editMessage call in order.
func (f *Fake) Replies() []string {
	var out []string
	for _, c := range f.Calls(OpSendMessage, OpEditMessage) {
		out = append(out, c.Text)
	}
	return out
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if queue := f.errs[c.Op]; len(queue) > 0 {
		f.errs[c.Op] = queue[1:]
		return queue[0]
	}
	return nil
}

func readFiles(uploads []telegram.Upload) []SentFile {
	files := make([]SentFile, 0, len(uploads))
	for _, u := range uploads {
		var data []byte
		if u.Data != nil {
			data, _ = io.ReadAll(u.Data)
		}
		files = append(files, SentFile{Filename: u.Filename, Video: u.Video, Caption: u.Caption, Data: data})
	}
	return files
}

func (f *Fake) GetChatMember(_ context.Context, _ any, userID int64) (*telegram.Member, error) {
	if err := f.record(Call{Op: OpGetChatMember, UserID: userID}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.Members[userID]; ok {
		return m, nil
	}
	return nil, &telegram.Error{Op: OpGetChatMember, Kind: telegram.KindNotFound, Err: io.EOF}
}

func (f *Fake) SendMessage(_ context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	if err := f.record(Call{Op: OpSendMessage, ChatID: chatID, Text: text, Markup: markup}); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *Fake) EditMessage(_ context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	return f.record(Call{Op: OpEditMessage, ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
}

func (f *Fake) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	return f.record(Call{Op: OpAnswerCallback, CallbackID: callbackID, Text: text, Alert: alert})
}

func (f *Fake) SendPhoto(_ context.Context, chatID int64, upload telegram.Upload) error {
	return f.record(Call{Op: OpSendPhoto, ChatID: chatID, Files: readFiles([]telegram.Upload{upload})})
}

func (f *Fake) SendVideo(_ context.Context, chatID int64, upload telegram.Upload) error {
	return f.record(Call{Op: OpSendVideo, ChatID: chatID, Files: readFiles([]telegram.Upload{upload})})
}

func (f *Fake) SendMediaGroup(_ context.Context, chatID int64, uploads []telegram.Upload) error {
	return f.record(Call{Op: OpSendMediaGroup, ChatID: chatID, Files: readFiles(uploads)})
}
