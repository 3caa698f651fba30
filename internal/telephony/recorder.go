package telephony

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is an in-process Dialer. It places nothing on the network and is
// used for dry runs and tests.
type Recorder struct {
	mu     sync.Mutex
	Placed []CallRequest
	Ended  []string
	Status map[string]string

	// Err, when set, fails every PlaceCall.
	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{Status: map[string]string{}}
}

func (r *Recorder) PlaceCall(ctx context.Context, req CallRequest) (CallInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return CallInfo{}, r.Err
	}
	r.Placed = append(r.Placed, req)
	id := fmt.Sprintf("CA%032d", len(r.Placed))
	if r.Status == nil {
		r.Status = map[string]string{}
	}
	r.Status[id] = "queued"
	return CallInfo{CallID: id, Status: "queued", To: req.To, From: req.From}, nil
}

func (r *Recorder) FetchCall(ctx context.Context, callID string) (CallInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.Status[callID]
	if !ok {
		return CallInfo{}, fmt.Errorf("telephony: unknown call %s", callID)
	}
	return CallInfo{CallID: callID, Status: st}, nil
}

func (r *Recorder) EndCall(ctx context.Context, callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ended = append(r.Ended, callID)
	if r.Status == nil {
		r.Status = map[string]string{}
	}
	r.Status[callID] = "completed"
	return nil
}

// Calls returns a copy of the placed requests.
func (r *Recorder) Calls() []CallRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CallRequest(nil), r.Placed...)
}
