// Package obs carries the collector's ambient observability stack: a
// delegating logr sink in the style of controller-runtime's log package, and
// the Prometheus metrics shared by every stage of the pipeline.
package obs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
)

// SetLogger fulfills the root delegating sink with l. Every logr.Logger
// previously obtained from FromContext starts writing through l from this
// point on. Call this once, early, from the hosting process; packages in
// this module never call it themselves.
func SetLogger(l logr.Logger) {
	logFulfilled.Store(true)
	rootLog.Fulfill(l.GetSink())
}

// FromContext returns the logr.Logger attached to ctx, or the package root
// logger if none is attached, with keysAndValues appended.
func FromContext(ctx context.Context, keysAndValues ...interface{}) logr.Logger {
	log := Log
	if ctx != nil {
		if logger, err := logr.FromContext(ctx); err == nil {
			log = logger
		}
	}
	return log.WithValues(keysAndValues...)
}

// IntoContext attaches l to ctx so that downstream FromContext calls pick it
// up.
func IntoContext(ctx context.Context, l logr.Logger) context.Context {
	return logr.NewContext(ctx, l)
}

func eventuallyFulfillRoot() {
	if logFulfilled.Load() {
		return
	}
	if time.Since(rootLogCreated).Seconds() < 30 {
		return
	}
	if !logFulfilled.CompareAndSwap(false, true) {
		return
	}
	stack := debug.Stack()
	stackLines := bytes.Count(stack, []byte{'\n'})
	sep := []byte{'\n', '\t', '>', ' ', ' '}
	fmt.Fprintf(os.Stderr,
		"obs.SetLogger(...) was never called; collector logs are discarded.\nDetected at:%s%s", sep,
		bytes.Replace(stack, []byte{'\n'}, sep, stackLines-1),
	)
	SetLogger(logr.New(nullLogSink{}))
}

var logFulfilled atomic.Bool

var (
	rootLog, rootLogCreated = func() (*delegatingLogSink, time.Time) {
		return newDelegatingLogSink(nullLogSink{}), time.Now()
	}()
	// Log is the package root logger. FromContext falls back to it when ctx
	// carries none.
	Log = logr.New(rootLog)
)

type nullLogSink struct{}

var _ logr.LogSink = nullLogSink{}

func (nullLogSink) Init(logr.RuntimeInfo)                      {}
func (nullLogSink) Info(_ int, _ string, _ ...interface{})     {}
func (nullLogSink) Error(_ error, _ string, _ ...interface{})  {}
func (nullLogSink) Enabled(_ int) bool                         { return false }
func (log nullLogSink) WithName(_ string) logr.LogSink         { return log }
func (log nullLogSink) WithValues(_ ...interface{}) logr.LogSink { return log }

type loggerPromise struct {
	logger        *delegatingLogSink
	childPromises []*loggerPromise
	promisesLock  sync.Mutex

	name *string
	tags []interface{}
}

func (p *loggerPromise) WithName(l *delegatingLogSink, name string) *loggerPromise {
	res := &loggerPromise{logger: l, name: &name}
	p.promisesLock.Lock()
	defer p.promisesLock.Unlock()
	p.childPromises = append(p.childPromises, res)
	return res
}

func (p *loggerPromise) WithValues(l *delegatingLogSink, tags ...interface{}) *loggerPromise {
	res := &loggerPromise{logger: l, tags: tags}
	p.promisesLock.Lock()
	defer p.promisesLock.Unlock()
	p.childPromises = append(p.childPromises, res)
	return res
}

func (p *loggerPromise) Fulfill(parentLogSink logr.LogSink) {
	sink := parentLogSink
	if p.name != nil {
		sink = sink.WithName(*p.name)
	}
	if p.tags != nil {
		sink = sink.WithValues(p.tags...)
	}

	p.logger.lock.Lock()
	p.logger.logger = sink
	if withCallDepth, ok := sink.(logr.CallDepthLogSink); ok {
		p.logger.logger = withCallDepth.WithCallDepth(1)
	}
	p.logger.promise = nil
	p.logger.lock.Unlock()

	for _, child := range p.childPromises {
		child.Fulfill(sink)
	}
}

type delegatingLogSink struct {
	lock    sync.RWMutex
	logger  logr.LogSink
	promise *loggerPromise
	info    logr.RuntimeInfo
}

func (l *delegatingLogSink) Init(info logr.RuntimeInfo) {
	eventuallyFulfillRoot()
	l.lock.Lock()
	defer l.lock.Unlock()
	l.info = info
}

func (l *delegatingLogSink) Enabled(level int) bool {
	eventuallyFulfillRoot()
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.logger.Enabled(level)
}

func (l *delegatingLogSink) Info(level int, msg string, keysAndValues ...interface{}) {
	eventuallyFulfillRoot()
	l.lock.RLock()
	defer l.lock.RUnlock()
	l.logger.Info(level, msg, keysAndValues...)
}

func (l *delegatingLogSink) Error(err error, msg string, keysAndValues ...interface{}) {
	eventuallyFulfillRoot()
	l.lock.RLock()
	defer l.lock.RUnlock()
	l.logger.Error(err, msg, keysAndValues...)
}

func (l *delegatingLogSink) WithName(name string) logr.LogSink {
	eventuallyFulfillRoot()
	l.lock.RLock()
	defer l.lock.RUnlock()

	if l.promise == nil {
		sink := l.logger.WithName(name)
		if withCallDepth, ok := sink.(logr.CallDepthLogSink); ok {
			sink = withCallDepth.WithCallDepth(-1)
		}
		return sink
	}

	res := &delegatingLogSink{logger: l.logger}
	res.promise = l.promise.WithName(res, name)
	return res
}

func (l *delegatingLogSink) WithValues(tags ...interface{}) logr.LogSink {
	eventuallyFulfillRoot()
	l.lock.RLock()
	defer l.lock.RUnlock()

	if l.promise == nil {
		sink := l.logger.WithValues(tags...)
		if withCallDepth, ok := sink.(logr.CallDepthLogSink); ok {
			sink = withCallDepth.WithCallDepth(-1)
		}
		return sink
	}

	res := &delegatingLogSink{logger: l.logger}
	res.promise = l.promise.WithValues(res, tags...)
	return res
}

func (l *delegatingLogSink) Fulfill(actual logr.LogSink) {
	if actual == nil {
		actual = nullLogSink{}
	}
	if l.promise != nil {
		l.promise.Fulfill(actual)
	}
}

func newDelegatingLogSink(initial logr.LogSink) *delegatingLogSink {
	l := &delegatingLogSink{logger: initial, promise: &loggerPromise{}}
	l.promise.logger = l
	return l
}

// Severity mirrors spec.md §7's four diagnostic levels onto logr's
// verbosity-only model: Error and Warning always surface (level 0), Notice
// and Debug are progressively more verbose V-levels.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNotice
	SeverityDebug
)

// Diagnostic emits a single text diagnostic at the named severity, the way
// spec.md §7 "User visibility" describes. err may be nil for Notice/Debug.
func Diagnostic(ctx context.Context, sev Severity, err error, msg string, keysAndValues ...interface{}) {
	log := FromContext(ctx)
	switch sev {
	case SeverityError:
		log.Error(err, msg, keysAndValues...)
	case SeverityWarning:
		log.V(0).Info(msg, append(keysAndValues, "severity", "warning")...)
	case SeverityNotice:
		log.V(1).Info(msg, append(keysAndValues, "severity", "notice")...)
	default:
		log.V(2).Info(msg, append(keysAndValues, "severity", "debug")...)
	}
}
