// Package delivery implements the notification queue and delivery pipeline:
// it persists queued entries, runs the periodic batch dequeue-and-deliver
// loop, normalizes provider results, and records delivery analytics.
//
// # Architecture
//
//  1. The QueueRepository and AnalyticsRepository interfaces encapsulate all
//     persistence. MemoryStorage backs tests and local development;
//     PostgresStorage is the durable implementation.
//  2. Pipeline.Enqueue resolves the template, the user's channel
//     preferences, and the optimal channel, personalizes the content and
//     writes a queued entry. High and urgent priorities are delivered
//     synchronously and the provider result is returned to the caller.
//  3. A periodic batch loop selects due entries ordered by priority then
//     scheduled time and delivers them concurrently, with concurrency
//     bounded by the batch size. A re-entrancy guard ensures only one batch
//     runs at a time.
//  4. Entry status transitions are monotonic: queued → sending →
//     {sent | failed}. A failed entry is never re-queued unless the
//     pipeline is constructed with WithRetryPolicy.
//
// # Usage
//
//	store := delivery.NewMemoryStorage()
//	registry := channel.NewRegistry(channel.NewDevSender(channel.Email, nil))
//	resolver, _ := personalization.NewResolver(templates)
//
//	pipeline, err := delivery.NewPipeline(store, store, registry, resolver, prefs,
//	    delivery.WithBatchSize(100),
//	    delivery.WithBatchInterval(10*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//
//	go pipeline.Start(ctx)
//	defer pipeline.Stop()
//
//	res, err := pipeline.Enqueue(ctx, delivery.SendRequest{
//	    TemplateSlug: "welcome-email",
//	    Recipient:    personalization.Recipient{UserID: "u1", Email: "u1@example.com"},
//	    Priority:     delivery.PriorityUrgent,
//	})
//
// # Error Handling
//
// Per-entry failures during a batch are isolated: one entry's provider
// rejection or storage error never affects its siblings. Callers using the
// synchronous high/urgent path receive delivery failures directly; all other
// failures surface through the entry's failed status and error message.
package delivery
