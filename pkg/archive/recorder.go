package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/log"
)

// Recorder collects flow-run events and archives each run when it
// finishes. Events are handed off through a topic so the connection's read
// loop never waits on storage
type Recorder struct {
	writer      *Writer
	prod        topic.Producer[*api.Event]
	cons        topic.Consumer[*api.Event]
	runs        map[api.FlowRunID]*Run
	stop        chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	startOnce   sync.Once
	stopOnce    sync.Once
	cleanupOnce sync.Once
}

const writeTimeout = 30 * time.Second

// NewRecorder creates a Recorder writing through w
func NewRecorder(w *Writer) *Recorder {
	queue := caravan.NewTopic[*api.Event]()
	return &Recorder{
		writer: w,
		prod:   queue.NewProducer(),
		cons:   queue.NewConsumer(),
		runs:   map[api.FlowRunID]*Run{},
		stop:   make(chan struct{}),
	}
}

// Start begins processing recorded events
func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		r.wg.Go(func() {
			for {
				select {
				case <-r.stop:
					return
				case ev, ok := <-r.cons.Receive():
					if !ok {
						return
					}
					r.record(ev)
				}
			}
		})
	})
}

// Handle queues an event. It has the shape of a subscription handler
func (r *Recorder) Handle(ev *api.Event) {
	r.prod.Send() <- ev
}

// Active returns the ids of runs that have events but have not finished
func (r *Recorder) Active() []api.FlowRunID {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]api.FlowRunID, 0, len(r.runs))
	for id := range r.runs {
		res = append(res, id)
	}
	return res
}

// Flush stops the Recorder, processes whatever is still queued, and writes
// unfinished runs as they stand
func (r *Recorder) Flush(ctx context.Context) error {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
	r.cleanupOnce.Do(r.drain)

	r.mu.Lock()
	runs := r.runs
	r.runs = map[api.FlowRunID]*Run{}
	r.mu.Unlock()

	var res error
	for _, run := range runs {
		if err := r.writer.Write(ctx, run); err != nil {
			res = err
			slog.Error("Failed to archive run",
				log.FlowRunID(run.FlowRunID),
				log.Error(err))
		}
	}
	return res
}

func (r *Recorder) drain() {
	defer r.close()
	for {
		select {
		case ev, ok := <-r.cons.Receive():
			if !ok {
				return
			}
			r.record(ev)
		default:
			return
		}
	}
}

func (r *Recorder) close() {
	r.prod.Close()
	r.cons.Close()
}

func (r *Recorder) record(ev *api.Event) {
	id := runIDOf(ev)
	if id == "" {
		slog.Debug("Skipping event without flow run",
			slog.String("event", string(ev.Kind)))
		return
	}

	r.mu.Lock()
	run, ok := r.runs[id]
	if !ok {
		run = &Run{FlowRunID: id}
		r.runs[id] = run
	}
	run.Events = append(run.Events, Entry{
		Event: ev.Kind,
		Data:  ev.Data,
	})
	if !ev.IsTerminal() {
		r.mu.Unlock()
		return
	}
	run.Finished = true
	delete(r.runs, id)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.writer.Write(ctx, run); err != nil {
		slog.Error("Failed to archive run",
			log.FlowRunID(id),
			log.Error(err))
		return
	}
	slog.Info("Archived run",
		log.FlowRunID(id),
		slog.Int("events", len(run.Events)))
}

func runIDOf(ev *api.Event) api.FlowRunID {
	if ev.SignatureRequest != nil && ev.SignatureRequest.FlowRunID != "" {
		return ev.SignatureRequest.FlowRunID
	}
	return ev.PeekFlowRunID()
}
