package bridge

import (
	"context"
	"sync"

	"github.com/callebjorkell/nfc-bridge/channel"
	"github.com/sirupsen/logrus"
)

const (
	methodOnMessage     = "onMessage"
	methodSetNfcEnabled = "setNfcEnabled"
)

// Indicator shows the state of the bridge to whoever is standing at the reader. Implementations are
// called from several goroutines.
type Indicator interface {
	Receiving()
	Buffered()
	Delivered()
	Failed()
	Off()
}

// Delivery calls the consumer without waiting for it. The acknowledgement is only logged and shown on
// the indicator; nothing is retried.
type Delivery struct {
	ctx       context.Context
	invoker   channel.Invoker
	indicator Indicator
	log       *logrus.Entry

	wg sync.WaitGroup
}

func NewDelivery(ctx context.Context, inv channel.Invoker, ind Indicator, log *logrus.Entry) *Delivery {
	return &Delivery{ctx: ctx, invoker: inv, indicator: ind, log: log}
}

// Deliver sends payload to the consumer as its onMessage argument.
func (d *Delivery) Deliver(payload []byte) {
	d.log.Infof("Delivering %d byte payload", len(payload))
	d.invoke(methodOnMessage, string(payload))
}

// Notify sends a notification that is not a delivery, like a change of the adapter state.
func (d *Delivery) Notify(method string, args interface{}) {
	d.invoke(method, args)
}

// Wait blocks until every call made so far has been acknowledged or abandoned.
func (d *Delivery) Wait() {
	d.wg.Wait()
}

func (d *Delivery) invoke(method string, args interface{}) {
	if d.invoker == nil {
		d.log.Warnf("No consumer attached, %v dropped", method)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		l := d.log.WithField("method", method)

		r, err := d.invoker.InvokeMethod(d.ctx, method, args)
		if err != nil {
			if d.ctx.Err() != nil {
				l.Infoln("Session ended before the consumer answered")
				return
			}
			l.Errorf("Call failed: %v", err)
			d.failed(method)
			return
		}

		switch r.Status {
		case channel.StatusSuccess:
			l.Debugf("Consumer acknowledged: %v", r.Value)
			if method == methodOnMessage && d.indicator != nil {
				d.indicator.Delivered()
			}
		case channel.StatusError:
			l.Warnf("Consumer answered with error %v: %v", r.Code, r.Message)
			d.failed(method)
		case channel.StatusNotImplemented:
			l.Warnln("Consumer does not implement the method")
			d.failed(method)
		}
	}()
}

func (d *Delivery) failed(method string) {
	if method == methodOnMessage && d.indicator != nil {
		d.indicator.Failed()
	}
}
