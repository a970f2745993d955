package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite emulates the HN login, reply and delete forms.
type fakeSite struct {
	mu       sync.Mutex
	posted   []url.Values
	deleted  []string
	onReply  func(parent, text string)
	badToken bool
}

func (f *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loggedIn := false
	if c, err := r.Cookie("user"); err == nil && c.Value == "alice&secret" {
		loggedIn = true
	}
	switch r.URL.Path {
	case "/login":
		_ = r.ParseForm()
		if r.PostForm.Get("acct") == "alice" && r.PostForm.Get("pw") == "pw" {
			http.SetCookie(w, &http.Cookie{Name: "user", Value: "alice&secret", Path: "/"})
		}
		fmt.Fprint(w, "ok")
	case "/news":
		if loggedIn {
			fmt.Fprint(w, `<a href="logout?auth=x">logout</a>`)
			return
		}
		fmt.Fprint(w, `<a href="login">login</a>`)
	case "/reply":
		if f.badToken {
			fmt.Fprint(w, "<form></form>")
			return
		}
		fmt.Fprintf(w, `<form method="post" action="comment">
<input type="hidden" name="parent" value="%s">
<input type="hidden" name="goto" value="item?id=1">
<input type="hidden" name="hmac" value="abc123">
<textarea name="text"></textarea></form>`, r.URL.Query().Get("id"))
	case "/comment":
		_ = r.ParseForm()
		f.posted = append(f.posted, r.PostForm)
		if f.onReply != nil {
			f.onReply(r.PostForm.Get("parent"), r.PostForm.Get("text"))
		}
		fmt.Fprint(w, "done")
	case "/delete-confirm":
		fmt.Fprintf(w, `<form action="/xdelete"><input type="hidden" name="id" value="%s">
<input type="hidden" name="hmac" value="del456"></form>`, r.URL.Query().Get("id"))
	case "/xdelete":
		_ = r.ParseForm()
		if r.PostForm.Get("hmac") == "del456" && r.PostForm.Get("d") == "Yes" {
			f.deleted = append(f.deleted, r.PostForm.Get("id"))
		}
		fmt.Fprint(w, "done")
	default:
		http.NotFound(w, r)
	}
}

// memStore is an in-memory session Store.
type memStore map[string]string

func (m memStore) GetSession(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memStore) PutSession(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func (m memStore) DeleteSession(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

func newSite(t *testing.T) (*fakeSite, string) {
	t.Helper()
	f := &fakeSite{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func TestLoginSaveLoad(t *testing.T) {
	_, base := newSite(t)
	ctx := context.Background()
	store := memStore{}

	s := NewSession(base, nil)
	require.Error(t, s.Login(ctx, "alice", "wrong"))
	assert.False(t, s.LoggedIn)
	require.ErrorIs(t, s.Save(ctx, store), ErrNotLoggedIn)

	require.NoError(t, s.Login(ctx, "alice", "pw"))
	require.NoError(t, s.Save(ctx, store))

	restored := NewSession(base, nil)
	ok, err := restored.Load(ctx, store)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", restored.Username)
}

func TestLoadDropsExpiredSession(t *testing.T) {
	_, base := newSite(t)
	store := memStore{sessionKey: `{"username":"alice","cookies":[{"name":"user","value":"stale"}]}`}

	s := NewSession(base, nil)
	ok, err := s.Load(context.Background(), store)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, store)
}

func TestReplyRequiresLogin(t *testing.T) {
	_, base := newSite(t)
	s := NewSession(base, nil)
	require.ErrorIs(t, s.Reply(context.Background(), 1, "hi"), ErrNotLoggedIn)
	require.ErrorIs(t, s.Delete(context.Background(), 1), ErrNotLoggedIn)
}

func TestReplyMissingToken(t *testing.T) {
	site, base := newSite(t)
	s := NewSession(base, nil)
	require.NoError(t, s.Login(context.Background(), "alice", "pw"))
	site.badToken = true

	err := s.Reply(context.Background(), 1, "hi")
	require.ErrorContains(t, err, "hmac")
}

func TestExtractFormInputs(t *testing.T) {
	html := `<input type="hidden" name="parent" value="42">
<input value="tok" name="hmac" type="hidden">
<input name="goto" value="item?id=1" type="hidden">`
	v := extractFormInputs(html)
	assert.Equal(t, "42", v.Get("parent"))
	assert.Equal(t, "tok", v.Get("hmac"))
	assert.Equal(t, "item?id=1", v.Get("goto"))
}

func TestCheckHNResponse(t *testing.T) {
	assert.NoError(t, checkHNResponse(200, []byte("fine")))
	assert.Error(t, checkHNResponse(500, nil))
	assert.ErrorContains(t, checkHNResponse(200, []byte("You're submitting too fast.")), "too fast")
}

// itemBoard serves items and lets the fake site add new kids.
type itemBoard struct {
	mu    sync.Mutex
	items map[int]*api.Item
	next  int
}

func (b *itemBoard) GetItem(_ context.Context, id int) (*api.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.items[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (b *itemBoard) add(parent int, by string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.items[id] = &api.Item{ID: id, Type: "comment", By: by, Parent: parent}
	p := b.items[parent]
	kids := append([]int{id}, p.Kids()...)
	raw := "["
	for i, k := range kids {
		if i > 0 {
			raw += ","
		}
		raw += fmt.Sprint(k)
	}
	p.RawKids = []byte(raw + "]")
	b.items[parent] = &api.Item{ID: p.ID, Type: p.Type, By: p.By, RawKids: p.RawKids}
}

func TestMutatorResolvesNewComment(t *testing.T) {
	site, base := newSite(t)
	board := &itemBoard{items: map[int]*api.Item{1: {ID: 1, Type: "story", By: "op"}}, next: 100}
	board.add(1, "bob")
	site.onReply = func(parent, _ string) {
		board.add(1, "carol")
		board.add(1, "alice")
	}

	s := NewSession(base, nil)
	require.NoError(t, s.Login(context.Background(), "alice", "pw"))
	m := &Mutator{Session: s, Items: board, Attempts: 2, Interval: time.Millisecond}

	id, err := m.AddComment(context.Background(), "1", "hello")
	require.NoError(t, err)
	assert.Equal(t, thread.ID("103"), id)
	require.Len(t, site.posted, 1)
	assert.Equal(t, "hello", site.posted[0].Get("text"))
	assert.Equal(t, "abc123", site.posted[0].Get("hmac"))
}

func TestMutatorUnresolvedCommentIsNotAnError(t *testing.T) {
	_, base := newSite(t)
	board := &itemBoard{items: map[int]*api.Item{1: {ID: 1, Type: "story"}}, next: 10}

	s := NewSession(base, nil)
	require.NoError(t, s.Login(context.Background(), "alice", "pw"))
	m := &Mutator{Session: s, Items: board, Attempts: 2, Interval: time.Millisecond}

	id, err := m.ReplyComment(context.Background(), "1", "hello")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestMutatorDelete(t *testing.T) {
	site, base := newSite(t)
	s := NewSession(base, nil)
	require.NoError(t, s.Login(context.Background(), "alice", "pw"))
	m := &Mutator{Session: s, Items: &itemBoard{items: map[int]*api.Item{}}}

	require.NoError(t, m.DeleteComment(context.Background(), "77"))
	assert.Equal(t, []string{"77"}, site.deleted)

	require.Error(t, m.DeleteComment(context.Background(), "nope"))
}
