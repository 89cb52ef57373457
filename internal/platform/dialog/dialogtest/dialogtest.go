// Package dialogtest provides a scripted dialog.UI for workflow tests.
package dialogtest

import (
	"context"
	"errors"
	"sync"

	"github.com/opticalpos/opticalpos/internal/platform/dialog"
)

// ErrExhausted is returned by Open once every scripted reply has been used.
var ErrExhausted = errors.New("dialogtest: no scripted reply left")

// Reply answers one Open call.
type Reply func(kind dialog.Kind, props any) (dialog.Result, error)

// Confirm replies with a confirmed result carrying payload.
func Confirm(payload any) Reply {
	return func(dialog.Kind, any) (dialog.Result, error) {
		return dialog.Confirmed(payload), nil
	}
}

// Cancel replies with a canceled result.
func Cancel() Reply {
	return func(dialog.Kind, any) (dialog.Result, error) {
		return dialog.Canceled(), nil
	}
}

// Fail makes Open return err.
func Fail(err error) Reply {
	return func(dialog.Kind, any) (dialog.Result, error) {
		return dialog.Result{}, err
	}
}

// Opened records one Open call.
type Opened struct {
	Kind  dialog.Kind
	Props any
}

// UI replays Replies in order and records everything shown.
type UI struct {
	mu      sync.Mutex
	Replies []Reply
	Opened  []Opened
	Notices []dialog.Notice
	URLs    []string
	URLErr  error
}

// New returns a UI scripted with replies.
func New(replies ...Reply) *UI {
	return &UI{Replies: replies}
}

func (u *UI) Open(_ context.Context, kind dialog.Kind, props any) (dialog.Result, error) {
	u.mu.Lock()
	u.Opened = append(u.Opened, Opened{Kind: kind, Props: props})
	if len(u.Replies) == 0 {
		u.mu.Unlock()
		return dialog.Result{}, ErrExhausted
	}
	next := u.Replies[0]
	u.Replies = u.Replies[1:]
	u.mu.Unlock()
	return next(kind, props)
}

func (u *UI) Notify(_ context.Context, n dialog.Notice) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Notices = append(u.Notices, n)
}

func (u *UI) OpenURL(_ context.Context, url string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.URLs = append(u.URLs, url)
	return u.URLErr
}

// Kinds lists the kinds opened so far, in order.
func (u *UI) Kinds() []dialog.Kind {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]dialog.Kind, len(u.Opened))
	for i, o := range u.Opened {
		out[i] = o.Kind
	}
	return out
}

// LastNotice returns the most recent notice, if any.
func (u *UI) LastNotice() (dialog.Notice, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.Notices) == 0 {
		return dialog.Notice{}, false
	}
	return u.Notices[len(u.Notices)-1], true
}
