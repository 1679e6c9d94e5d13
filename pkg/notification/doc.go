// Package notification polls the catalog's change-notification feed,
// reconciles each notification against caller-pinned resource versions and
// distributes the result to subscribers.
//
// A pipeline runs one sequential loop:
//
//	Idle -> Polling -> Reconciling -> Distributing -> Sleeping -> Polling ...
//	                                        |
//	                                        +-> Completed (after Cancel)
//
// Notifications reach subscribers in feed order. A failing subscriber only
// ever sees its own errors; delivery to every other subscriber continues. A
// failed poll or reconciliation ends the run: subscribers are completed and
// detached, and the error is returned from Start.
//
// Basic usage:
//
//	overrides := notification.NewVersionOverrides()
//	overrides.Set("persons", "v12.3.0")
//
//	p, err := notification.NewPipeline(notification.Config{
//		Feed:      catalogClient,
//		Fetcher:   catalogClient,
//		Overrides: overrides,
//	})
//	p.Attach(&notification.SubscriberFuncs[resource.ChangeNotification]{
//		Notification: func(ctx context.Context, n resource.ChangeNotification) error {
//			return handle(n)
//		},
//	})
//	err = p.Start(ctx, 100)
package notification
