package host

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lattice-run/lattice/internal/bus"
	"github.com/lattice-run/lattice/internal/ctlproto"
	"github.com/lattice-run/lattice/internal/subject"
)

// ImagePuller fetches a component/provider artifact by reference,
// returning a local path. The WASM runtime that does anything with that
// artifact is out of scope (spec.md §1); the Reconciler only needs to
// know whether the fetch succeeded.
type ImagePuller interface {
	PullRef(ctx context.Context, ref string) (string, error)
}

// Reconciler turns early-acked scale/update/start commands into
// convergence events, off the message-bus subscription goroutine (spec.md
// §5: "the core ... MUST NOT block the subscription reader for the
// duration of a fetch/launch — this is the reason for the early-ack
// discipline"). It is grounded on the same offload-to-a-worker-pool shape
// the teacher's internal/polling.Manager uses for long-running dev-loop
// work, generalized to the lattice's scale/start/update operations.
type Reconciler struct {
	hostID  string
	lattice string
	inv     *Inventory
	bus     bus.Bus
	puller  ImagePuller
	log     *zap.SugaredLogger
	now     func() time.Time
	tasks   chan func(context.Context)
}

// NewReconciler builds a Reconciler with a bounded task queue; Start must
// be called to begin draining it.
func NewReconciler(hostID, lattice string, inv *Inventory, b bus.Bus, puller ImagePuller, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		hostID:  hostID,
		lattice: lattice,
		inv:     inv,
		bus:     b,
		puller:  puller,
		log:     log,
		now:     time.Now,
		tasks:   make(chan func(context.Context), 256),
	}
}

// Start spawns workers worker goroutines draining the task queue. Each
// task runs to completion before a worker picks up the next, but multiple
// workers run concurrently so one slow fetch never blocks every other
// pending reconciliation.
func (r *Reconciler) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go r.worker(ctx)
	}
}

func (r *Reconciler) worker(ctx context.Context) {
	for {
		select {
		case task := <-r.tasks:
			task(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) enqueue(task func(context.Context)) {
	r.tasks <- task
}

func (r *Reconciler) emit(ctx context.Context, eventType string, data any) {
	ce, err := ctlproto.NewCloudEvent(r.hostID, eventType, data, r.now())
	if err != nil {
		r.logw("reconciler: build event failed", err)
		return
	}
	payload, err := json.Marshal(ce)
	if err != nil {
		r.logw("reconciler: marshal event failed", err)
		return
	}
	subj := subject.Event(r.lattice, eventType)
	if err := r.bus.Publish(ctx, subj, payload, nil); err != nil {
		r.logw("reconciler: publish event failed", err)
	}
}

func (r *Reconciler) logw(msg string, err error) {
	if r.log != nil {
		r.log.Errorw(msg, "error", err)
	}
}

// ScaleComponent reconciles a component variant to req.MaxInstances.
// Scaling to 0 removes the variant (spec.md §3/§4.4). A pull failure for
// a non-zero target is reported only via component_scale_failed, never
// synchronously (spec.md §7).
func (r *Reconciler) ScaleComponent(req ctlproto.ScaleComponentRequest) {
	r.enqueue(func(ctx context.Context) {
		if req.MaxInstances <= 0 {
			r.inv.RemoveVariant(req.ComponentID, req.Annotations)
			r.emit(ctx, ctlproto.EventComponentScaled, ctlproto.ComponentScaledData{
				ComponentID: req.ComponentID,
				ImageRef:    req.ImageRef,
				Annotations: req.Annotations,
				Count:       0,
			})
			return
		}

		if r.puller != nil {
			if _, err := r.puller.PullRef(ctx, req.ImageRef); err != nil {
				r.emit(ctx, ctlproto.EventComponentScaleFailed, ctlproto.ComponentScaleFailedData{
					ComponentID: req.ComponentID,
					ImageRef:    req.ImageRef,
					Annotations: req.Annotations,
					Error:       err.Error(),
				})
				return
			}
		}

		r.inv.PutVariant(req.ComponentID, &Variant{
			ImageRef:     req.ImageRef,
			Annotations:  req.Annotations,
			MaxInstances: req.MaxInstances,
			ConfigNames:  req.ConfigNames,
		})
		r.emit(ctx, ctlproto.EventComponentScaled, ctlproto.ComponentScaledData{
			ComponentID: req.ComponentID,
			ImageRef:    req.ImageRef,
			Annotations: req.Annotations,
			Count:       req.MaxInstances,
		})
	})
}

// UpdateComponent reconciles an in-place image swap for a running variant,
// preserving its current instance count and config names. No dedicated
// event type is defined for updates (spec.md §4.4 lists events "at
// minimum"), so convergence reuses component_scaled/component_scale_failed.
func (r *Reconciler) UpdateComponent(req ctlproto.UpdateComponentRequest) {
	r.enqueue(func(ctx context.Context) {
		existing, ok := r.inv.GetVariant(req.ComponentID, req.Annotations)
		if !ok {
			r.emit(ctx, ctlproto.EventComponentScaleFailed, ctlproto.ComponentScaleFailedData{
				ComponentID: req.ComponentID,
				ImageRef:    req.NewImageRef,
				Annotations: req.Annotations,
				Error:       fmt.Sprintf("component %s: no running variant to update", req.ComponentID),
			})
			return
		}

		if r.puller != nil {
			if _, err := r.puller.PullRef(ctx, req.NewImageRef); err != nil {
				r.emit(ctx, ctlproto.EventComponentScaleFailed, ctlproto.ComponentScaleFailedData{
					ComponentID: req.ComponentID,
					ImageRef:    req.NewImageRef,
					Annotations: req.Annotations,
					Error:       err.Error(),
				})
				return
			}
		}

		r.inv.PutVariant(req.ComponentID, &Variant{
			ImageRef:     req.NewImageRef,
			Annotations:  req.Annotations,
			MaxInstances: existing.MaxInstances,
			ConfigNames:  existing.ConfigNames,
		})
		r.emit(ctx, ctlproto.EventComponentScaled, ctlproto.ComponentScaledData{
			ComponentID: req.ComponentID,
			ImageRef:    req.NewImageRef,
			Annotations: req.Annotations,
			Count:       existing.MaxInstances,
		})
	})
}

// StartProvider reconciles starting a provider instance.
func (r *Reconciler) StartProvider(req ctlproto.StartProviderRequest, contractID string) {
	linkName := req.LinkName
	if linkName == "" {
		linkName = "default"
	}
	r.enqueue(func(ctx context.Context) {
		if r.puller != nil {
			if _, err := r.puller.PullRef(ctx, req.ImageRef); err != nil {
				r.emit(ctx, ctlproto.EventProviderStartFailed, ctlproto.ProviderStartFailedData{
					ProviderID: req.ProviderID,
					ImageRef:   req.ImageRef,
					LinkName:   linkName,
					Error:      err.Error(),
				})
				return
			}
		}
		r.inv.PutProvider(req.ProviderID, &Provider{
			ImageRef:   req.ImageRef,
			LinkName:   linkName,
			ContractID: contractID,
		})
		r.emit(ctx, ctlproto.EventProviderStarted, ctlproto.ProviderStartedData{
			ProviderID: req.ProviderID,
			ImageRef:   req.ImageRef,
			LinkName:   linkName,
			ContractID: contractID,
		})
	})
}
