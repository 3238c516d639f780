package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/modules"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel        = "error_type"
	msgTypeLabel        = "msg_type"
	moduleLabel         = "module"
	publicEndpointLabel = "public_endpoint"
	appKeyLabel         = "app_key"

	coreModule = "stagekit"
)

var (
	editorsConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stagekit_ws_editors_connected",
		Help: "The number of connected editors.",
	}, []string{publicEndpointLabel, appKeyLabel})

	msgsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagekit_ws_msgs_received",
		Help: "The number of messages received from editors.",
	}, []string{publicEndpointLabel, appKeyLabel, msgTypeLabel})

	bytesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagekit_ws_bytes_received",
		Help: "The number of bytes received from editors.",
	}, []string{publicEndpointLabel, appKeyLabel, msgTypeLabel})

	receiveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagekit_ws_receive_errors",
		Help: "The errors that occurred while reading an editor message.",
	}, []string{publicEndpointLabel, appKeyLabel, errTypeLabel})

	msgsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagekit_ws_msgs_sent",
		Help: "The number of messages sent to editors.",
	}, []string{publicEndpointLabel, appKeyLabel, msgTypeLabel})

	bytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagekit_ws_bytes_sent",
		Help: "The number of bytes sent to editors.",
	}, []string{publicEndpointLabel, appKeyLabel, msgTypeLabel})

	sendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagekit_ws_send_errors",
		Help: "The errors that occurred while writing a message to an editor.",
	}, []string{publicEndpointLabel, appKeyLabel, msgTypeLabel, errTypeLabel})

	msgLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "stagekit_ws_msg_latency",
		Help: "The time to process an editor message.",
	}, []string{publicEndpointLabel, msgTypeLabel, moduleLabel})

	documentSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stagekit_ws_document_bytes",
		Help:    "The size of stage documents loaded by editors.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	}, []string{publicEndpointLabel, appKeyLabel})
)

// HandlerWithMetrics wraps h with Prometheus instrumentation. Metrics are
// labeled by the public endpoint and the app key the editor connected with.
func HandlerWithMetrics(h Handler, publicEndpoint string) Handler {
	return &handlerWithMetrics{
		Handler:        h,
		publicEndpoint: publicEndpoint,
	}
}

type handlerWithMetrics struct {
	Handler

	appKey         string
	publicEndpoint string
}

func (h *handlerWithMetrics) labels(kv ...string) prometheus.Labels {
	l := prometheus.Labels{
		publicEndpointLabel: h.publicEndpoint,
		appKeyLabel:         h.appKey,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		l[kv[i]] = kv[i+1]
	}
	return l
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	h.appKey = conn.Request().Header.Get(HeaderAppKey)
	editorsConnected.With(h.labels()).Inc()
	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	editorsConnected.With(h.labels()).Dec()
	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) HandlePing(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandlePing(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleStageOpen(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandleStageOpen(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleStageLoad(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	documentSize.With(h.labels()).Observe(float64(len(msg.Data)))

	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandleStageLoad(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleStageExport(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandleStageExport(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleObjectAdd(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandleObjectAdd(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleObjectUpdate(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandleObjectUpdate(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleObjectGeometryUpdate(ctx context.Context, msg messages.Msg) error {
	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandleObjectGeometryUpdate(ctx, msg)
	})
}

func (h *handlerWithMetrics) HandleObjectDelete(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandleObjectDelete(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleObjectList(ctx context.Context, sender messages.ResponseSender, msg messages.Msg) error {
	return h.measure(msg, coreModule, func() error {
		return h.Handler.HandleObjectList(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleWithModule(ctx context.Context, module modules.Module, sender messages.ResponseSender, msg messages.Msg) error {
	return h.measure(msg, module.Name(), func() error {
		return h.Handler.HandleWithModule(ctx, module, sender, msg)
	})
}

func (h *handlerWithMetrics) Receiver() messages.Receiver {
	receive := h.Handler.Receiver()

	return func() (messages.Msg, int, error) {
		msg, n, err := receive()
		msgType := msg.TypeString()

		if err != nil {
			receiveErrors.With(h.labels(errTypeLabel, errors.Type(err))).Inc()
		} else {
			msgsReceived.With(h.labels(msgTypeLabel, msgType)).Inc()
		}
		if n != 0 {
			bytesReceived.With(h.labels(msgTypeLabel, msgType)).Add(float64(n))
		}
		return msg, n, err
	}
}

func (h *handlerWithMetrics) Sender() messages.Sender {
	send := h.Handler.Sender()

	return func(msg messages.Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := send(msg)
		if err != nil {
			sendErrors.With(h.labels(
				msgTypeLabel, msgType,
				errTypeLabel, errors.Type(err),
			)).Inc()
		}
		if n != 0 {
			msgsSent.With(h.labels(msgTypeLabel, msgType)).Inc()
			bytesSent.With(h.labels(msgTypeLabel, msgType)).Add(float64(n))
		}
		return n, err
	}
}

// measure observes how long f takes. Messages skipped by a module are not
// observed since another handler will process them.
func (h *handlerWithMetrics) measure(msg messages.Msg, module string, f func() error) error {
	start := time.Now()

	err := f()
	if errors.IsType(err, messages.ErrTypeMsgSkip) {
		return err
	}

	msgLatency.With(prometheus.Labels{
		publicEndpointLabel: h.publicEndpoint,
		msgTypeLabel:        msg.TypeString(),
		moduleLabel:         module,
	}).Observe(time.Since(start).Seconds())
	return err
}
