package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/remote"
)

// SaveReply is a scripted answer to one Save call.
type SaveReply struct {
	Response remote.SaveResponse
	Err      error
	// Panic makes the call panic, to exercise worker recovery.
	Panic bool
}

// StatusReply is a scripted answer to one ChangeStatus call.
type StatusReply struct {
	Response remote.StatusResponse
	Err      error
}

// FakeRemote is a scripted, in-memory remote.Client.
//
// Unscripted saves succeed: every added row gets the next id from a counter
// starting at 101, in batch order. Calls can be held open with Hold to keep a
// flush in flight.
//
// Thread-safety: safe for concurrent use; calls arrive on worker goroutines.
type FakeRemote struct {
	mu            sync.Mutex
	nextID        int64
	saveReplies   []SaveReply
	statusReplies []StatusReply
	saves         []remote.SaveRequest
	statuses      []remote.StatusRequest
	rows          map[model.Kind][]remote.Row
	hold          chan struct{}
	entered       chan struct{}
}

var _ remote.Client = (*FakeRemote)(nil)

// NewFakeRemote creates a fake whose first assigned id is 101.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		nextID:  101,
		rows:    make(map[model.Kind][]remote.Row),
		entered: make(chan struct{}, 64),
	}
}

// SetNextID sets the next id handed out for an added row.
func (f *FakeRemote) SetNextID(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = id
}

// ReplySave queues scripted answers for the next Save calls.
func (f *FakeRemote) ReplySave(replies ...SaveReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveReplies = append(f.saveReplies, replies...)
}

// FailSave queues an application failure carrying message.
func (f *FakeRemote) FailSave(message string) {
	f.ReplySave(SaveReply{Err: remote.ApplicationError(http.StatusOK, message)})
}

// ReplyStatus queues scripted answers for the next ChangeStatus calls.
func (f *FakeRemote) ReplyStatus(replies ...StatusReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusReplies = append(f.statusReplies, replies...)
}

// SetRows sets what Rows returns for kind.
func (f *FakeRemote) SetRows(kind model.Kind, rows ...remote.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[kind] = rows
}

// Hold makes subsequent calls block until Release.
func (f *FakeRemote) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold == nil {
		f.hold = make(chan struct{})
	}
}

// Release unblocks held calls.
func (f *FakeRemote) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold != nil {
		close(f.hold)
		f.hold = nil
	}
}

// Entered signals once per call, as the call starts.
func (f *FakeRemote) Entered() <-chan struct{} {
	return f.entered
}

// Saves returns the save requests received so far.
func (f *FakeRemote) Saves() []remote.SaveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.SaveRequest, len(f.saves))
	copy(out, f.saves)
	return out
}

// SaveCount returns the number of Save calls.
func (f *FakeRemote) SaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// StatusRequests returns the status requests received so far.
func (f *FakeRemote) StatusRequests() []remote.StatusRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.StatusRequest, len(f.statuses))
	copy(out, f.statuses)
	return out
}

func (f *FakeRemote) enter() chan struct{} {
	select {
	case f.entered <- struct{}{}:
	default:
	}
	return f.hold
}

func wait(ctx context.Context, hold chan struct{}) error {
	if hold == nil {
		return nil
	}
	select {
	case <-hold:
		return nil
	case <-ctx.Done():
		return remote.TransportError("request failed", ctx.Err())
	}
}

// Save implements remote.Client.
func (f *FakeRemote) Save(ctx context.Context, req remote.SaveRequest) (remote.SaveResponse, error) {
	f.mu.Lock()
	f.saves = append(f.saves, req)
	hold := f.enter()
	f.mu.Unlock()

	if err := wait(ctx, hold); err != nil {
		return remote.SaveResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.saveReplies) > 0 {
		r := f.saveReplies[0]
		f.saveReplies = f.saveReplies[1:]
		if r.Panic {
			panic("fake remote: scripted panic")
		}
		return r.Response, r.Err
	}

	resp := remote.SaveResponse{
		Status:       remote.StatusOK,
		IDMap:        make(map[int64]int64, len(req.AddedRows)),
		UpdatedCount: len(req.UpdatedRows),
		DeletedCount: len(req.DeletedIDs),
	}
	for _, row := range req.AddedRows {
		resp.IDMap[row.TempID] = f.nextID
		f.nextID++
	}
	return resp, nil
}

// ChangeStatus implements remote.Client.
func (f *FakeRemote) ChangeStatus(ctx context.Context, req remote.StatusRequest) (remote.StatusResponse, error) {
	f.mu.Lock()
	f.statuses = append(f.statuses, req)
	hold := f.enter()
	f.mu.Unlock()

	if err := wait(ctx, hold); err != nil {
		return remote.StatusResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusReplies) > 0 {
		r := f.statusReplies[0]
		f.statusReplies = f.statusReplies[1:]
		return r.Response, r.Err
	}
	return remote.StatusResponse{Status: remote.StatusOK, MovedCount: len(req.IDs)}, nil
}

// Rows implements remote.Client.
func (f *FakeRemote) Rows(_ context.Context, kind model.Kind, _ string) ([]remote.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.Row, len(f.rows[kind]))
	copy(out, f.rows[kind])
	return out, nil
}
