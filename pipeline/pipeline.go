package pipeline

import (
	"sync"
	"time"

	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/obs"
	"github.com/CESNET/ipfixcol-sub004/profile"
	"github.com/CESNET/ipfixcol-sub004/record"
	"github.com/CESNET/ipfixcol-sub004/source"
	"github.com/CESNET/ipfixcol-sub004/template"
)

// ticker is implemented by template.Store decorators (template.DecayingStore)
// that expire templates under a UDP-source refresh policy, spec.md §6.7's
// template_life_time/template_life_packet. Not every Store cares about
// ticks, so this is an optional interface checked once per datagram rather
// than part of template.Store itself.
type ticker interface {
	Tick(group template.GroupKey, now time.Time)
}

// rawItem is what an input worker hands to the preprocessor: either a raw
// datagram to decode and route, or the shutdown signal.
type rawItem struct {
	buf      []byte
	info     source.Info
	status   decode.SourceStatus
	shutdown bool
}

// Config wires the stage chain and storage fan-out of a Pipeline, spec.md
// §4.5: "Input workers → ordered intermediate stages → fan-out to storage
// workers."
type Config struct {
	Store         template.Store
	Router        *profile.Router
	V5Options     decode.NormalizeV5Options
	Stages        []IntermediateStage
	Storages      []StorageStage
	QueueCapacity int
}

// Pipeline is one running instance of the spec.md §4.5 data flow: a
// dedicated preprocessor goroutine, one goroutine per intermediate stage,
// and one goroutine per storage worker, each with its own bounded Queue.
type Pipeline struct {
	store  template.Store
	router *profile.Router
	v5Opts decode.NormalizeV5Options

	ingress chan rawItem

	stages   []IntermediateStage
	queues   []*Queue // queues[0] feeds stages[0]; queues[len(stages)] feeds the fan-out
	storages []StorageStage
	stQueues []*Queue

	done chan struct{}
}

// New builds a Pipeline from cfg but does not start it; call Run to launch
// its goroutines.
func New(cfg Config) *Pipeline {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 64
	}

	p := &Pipeline{
		store:    cfg.Store,
		router:   cfg.Router,
		v5Opts:   cfg.V5Options,
		ingress:  make(chan rawItem, capacity),
		stages:   cfg.Stages,
		storages: cfg.Storages,
		done:     make(chan struct{}),
	}

	p.queues = make([]*Queue, len(p.stages)+1)
	for i := range p.queues {
		p.queues[i] = NewQueue(stageQueueName(p.stages, i), capacity)
	}
	p.stQueues = make([]*Queue, len(p.storages))
	for i, s := range p.storages {
		p.stQueues[i] = NewQueue("storage:"+s.Name(), capacity)
	}

	return p
}

func stageQueueName(stages []IntermediateStage, i int) string {
	if i < len(stages) {
		return stages[i].Name()
	}
	return "fanout"
}

// Submit hands one raw datagram to the preprocessor, spec.md §4.5's input
// worker → preprocessor hop. buf must already be in IPFIX wire shape or a
// NetFlow v5/v9 datagram; Run's preprocessor normalizes and decodes it.
func (p *Pipeline) Submit(buf []byte, info source.Info, status decode.SourceStatus) {
	p.ingress <- rawItem{buf: buf, info: info, status: status}
}

// InitiateShutdown delivers the shutdown sentinel into the preprocessor
// queue, spec.md §5: "Shutdown is initiated by delivering the shutdown
// sentinel into the preprocessor queue."
func (p *Pipeline) InitiateShutdown() {
	p.ingress <- rawItem{shutdown: true}
}

// Done returns a channel that closes once the shutdown sentinel has drained
// through the fan-out and every storage worker has returned.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Run launches every stage goroutine and blocks until the shutdown sentinel
// has drained through the last storage worker.
func (p *Pipeline) Run() {
	go p.runPreprocessor()
	for i, stage := range p.stages {
		go p.runIntermediate(stage, p.queues[i], p.queues[i+1])
	}
	var wg sync.WaitGroup
	wg.Add(1 + len(p.storages))
	go func() {
		defer wg.Done()
		p.runFanOut(p.queues[len(p.stages)])
	}()
	for i, storage := range p.storages {
		go func(stage StorageStage, in *Queue) {
			defer wg.Done()
			p.runStorage(stage, in)
		}(storage, p.stQueues[i])
	}
	wg.Wait()
	close(p.done)
}

func (p *Pipeline) runPreprocessor() {
	firstQueue := p.queues[0]
	for item := range p.ingress {
		if item.shutdown {
			firstQueue.Push(Shutdown())
			return
		}

		if item.status == decode.StatusClosed {
			// spec.md §8 scenario 6: bulk-withdraw before forwarding the
			// sentinel, so any template lookup racing the close sees the
			// withdrawal rather than a source that looks merely idle.
			p.store.WithdrawAllForSource(source.CRC(item.info))
			firstQueue.Push(ClosedEvent(item.info))
			continue
		}

		normalized, err := decode.Normalize(item.buf, p.v5Opts)
		if err != nil {
			obs.DecodeErrorsTotal.WithLabelValues("normalize").Inc()
			continue
		}
		decoded, err := decode.Decode(normalized, item.info, item.status, p.store)
		if err != nil {
			continue
		}

		if t, ok := p.store.(ticker); ok {
			group := template.GroupKey{
				ObservationDomainID: decoded.Header.ObservationDomainID,
				SourceCRC:           source.CRC(item.info),
			}
			t.Tick(group, time.Now())
		}

		msg := Wrap(decoded)
		p.route(msg, item.info)
		obs.PipelineMessagesTotal.WithLabelValues("preprocessor").Inc()
		firstQueue.Push(msg)
	}
}

// route walks every data couple with an admitted template and resolves its
// records' channels, spec.md §4.6: "The channel resolution walks the
// profile tree once per record."
func (p *Pipeline) route(msg *Message, info source.Info) {
	odid := msg.Decoded.Header.ObservationDomainID
	for _, couple := range msg.Decoded.DataCouples {
		if couple.Template == nil {
			continue
		}
		walker := record.Records(couple.Content, couple.Template)
		for {
			view, ok := walker.Next()
			if !ok {
				break
			}
			obs.DecodedRecordsTotal.WithLabelValues(couple.Template.Kind.String()).Inc()
			channels := p.router.Route(view, odid, info)
			msg.Records = append(msg.Records, RecordMeta{SetID: couple.SetID, View: view, Channels: channels})
		}
	}
}

func (p *Pipeline) runIntermediate(stage IntermediateStage, in, out *Queue) {
	for {
		msg := in.Pop()
		if msg.IsShutdown() {
			out.Push(msg)
			return
		}

		obs.PipelineMessagesTotal.WithLabelValues(stage.Name()).Inc()
		result, err := stage.Process(msg)
		if err != nil {
			obs.StageFailuresTotal.WithLabelValues(stage.Name()).Inc()
			obs.PipelineDropsTotal.WithLabelValues(stage.Name(), "stage_error").Inc()
			msg.Release(p.store)
			continue
		}
		if result == nil {
			obs.PipelineDropsTotal.WithLabelValues(stage.Name(), "dropped").Inc()
			msg.Release(p.store)
			continue
		}
		out.Push(result)
	}
}

func (p *Pipeline) runFanOut(in *Queue) {
	for {
		msg := in.Pop()
		if msg.IsShutdown() {
			for _, q := range p.stQueues {
				q.Push(msg)
			}
			return
		}

		if len(p.stQueues) == 0 {
			// No storage stages configured: nothing downstream will ever
			// release this message, so this is the sole releaser.
			msg.Release(p.store)
			continue
		}
		for i := 1; i < len(p.stQueues); i++ {
			msg.Retain()
		}
		for _, q := range p.stQueues {
			q.Push(msg)
		}
	}
}

func (p *Pipeline) runStorage(stage StorageStage, in *Queue) {
	for {
		msg := in.Pop()
		if msg.IsShutdown() {
			return
		}

		obs.PipelineMessagesTotal.WithLabelValues("storage:" + stage.Name()).Inc()
		if err := stage.Store(msg); err != nil {
			obs.StageFailuresTotal.WithLabelValues(stage.Name()).Inc()
			obs.PipelineDropsTotal.WithLabelValues(stage.Name(), "store_error").Inc()
		}
		msg.Release(p.store)
	}
}
