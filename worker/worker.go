package worker

import (
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/oomph-ac/waypoint/werror"
	"github.com/sirupsen/logrus"
)

var workerQueue = make(chan func(), runtime.NumCPU()*4)

func init() {
	for i := 0; i < runtime.NumCPU(); i++ {
		go worker()
	}
}

func worker() {
	for f := range workerQueue {
		run(f)
	}
}

// run calls f, reporting a panic to sentry instead of letting it kill the worker.
func run(f func()) {
	defer func() {
		if v := recover(); v != nil {
			hub := sentry.CurrentHub().Clone()
			hub.Recover(werror.New("worker job panicked: %v", v))
			hub.Flush(time.Second * 5)
			logrus.Errorf("worker job panicked: %v", v)
		}
	}()
	f()
}

// Submit queues f to run on a background worker. It is meant for work that blocks or waits,
// such as asset loads and readiness probes, so that the frame loop never does.
func Submit(f func()) {
	workerQueue <- f
}
