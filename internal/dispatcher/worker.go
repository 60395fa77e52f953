package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CaitMS/Web-Exploration-Engine/internal/broker"
)

type Worker struct {
	InputChan  <-chan *broker.Delivery
	PanicChan  chan<- struct{}
	Dispatcher *Dispatcher
	Log        *slog.Logger
	Wg         *sync.WaitGroup
}

// Run handles deliveries until the input channel is closed. A panic is reported on PanicChan
// so the worker can be restarted.
func (w *Worker) Run(ctx context.Context) {
	// Done runs last so the panic report is sent before a shutdown can close PanicChan.
	defer w.Wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.Log.Error("PANIC!", slog.Any("err", r))
			w.PanicChan <- struct{}{}
		}
	}()
	w.Log.Debug("starting dispatch worker.")

	for delivery := range w.InputChan {
		w.Dispatcher.Handle(ctx, delivery)
	}
}
