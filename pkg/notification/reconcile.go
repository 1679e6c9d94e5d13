package notification

import (
	"context"
	"fmt"

	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/Sternrassler/catalog-client/pkg/resource"
	"github.com/rs/zerolog"
)

// Fetcher retrieves a single resource representation. *client.Client
// implements it.
type Fetcher interface {
	Get(ctx context.Context, r client.Request) (*client.Response, error)
}

// Reconciler rewrites notifications into the version pinned for their
// resource.
type Reconciler struct {
	fetcher   Fetcher
	overrides *VersionOverrides
	logger    zerolog.Logger
}

// NewReconciler creates a reconciler. A nil overrides table reconciles
// nothing.
func NewReconciler(fetcher Fetcher, overrides *VersionOverrides) *Reconciler {
	return &Reconciler{
		fetcher:   fetcher,
		overrides: overrides,
		logger:    logging.NewLogger(logging.ComponentReconciler),
	}
}

// Reconcile returns n in its pinned version. Deleted notifications,
// resources without an override and notifications already in the pinned
// version are returned unchanged. Otherwise the resource is fetched by id
// at the pinned version and its representation replaces n's.
func (r *Reconciler) Reconcile(ctx context.Context, n resource.ChangeNotification) (resource.ChangeNotification, error) {
	if n.Operation.IsDeleted() {
		return n, nil
	}

	version, ok := r.overrides.Lookup(n.Resource.Name)
	if !ok || resource.SameVersion(version, n.Resource.Version) {
		return n, nil
	}

	if r.fetcher == nil {
		return n, fmt.Errorf("%w: override for %q needs a resource fetcher", ErrInvalidConfig, n.Resource.Name)
	}

	resp, err := r.fetcher.Get(ctx, client.Request{
		Resource: n.Resource.Name,
		ID:       n.Resource.ID,
		Version:  version,
	})
	if err != nil {
		return n, fmt.Errorf("reconcile %s/%s at %s: %w", n.Resource.Name, n.Resource.ID, version, err)
	}

	served := resp.ServedVersion()
	if served == "" {
		served = version
	}
	contentType := resp.ContentRestriction()
	if contentType == "" {
		contentType = resource.DefaultContentType
	}

	notificationsReconciledTotal.WithLabelValues(n.Resource.Name).Inc()
	r.logger.Debug().
		Str("notification_id", string(n.ID)).
		Str("resource", n.Resource.Name).
		Str("from_version", n.Resource.Version).
		Str("to_version", served).
		Msg("Reconciled notification")

	return n.WithRepresentation(served, contentType, resp.Body), nil
}

// ReconcileAll reconciles a batch in order. The first failure aborts.
func (r *Reconciler) ReconcileAll(ctx context.Context, batch []resource.ChangeNotification) ([]resource.ChangeNotification, error) {
	out := make([]resource.ChangeNotification, 0, len(batch))
	for _, n := range batch {
		rn, err := r.Reconcile(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, rn)
	}
	return out, nil
}
