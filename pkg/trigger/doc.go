// Package trigger turns behavioral events into queued notifications.
//
// The Engine holds an in-memory event-name index of trigger rules, rebuilt
// atomically by Reload. ProcessEvent fans an event out to every subscribed
// rule concurrently; each rule runs an independent gate pipeline that
// short-circuits on the first failing gate:
//
//  1. condition evaluation against the event payload
//  2. segment targeting (include and exclude sets)
//  3. per-user rate limiting inside a cooldown window
//  4. time window (allowed hours, allowed days, quiet hours)
//  5. template resolution and enqueue via the delivery pipeline
//
// One rule's failure never blocks or fails its siblings; every rule reports
// an isolated RuleResult.
//
// # Usage
//
//	source, err := trigger.LoadRuleFile("rules.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine, err := trigger.NewEngine(source, pipeline, store,
//		trigger.WithSegmentResolver(segments))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := engine.Reload(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := engine.ProcessEvent(ctx, trigger.Event{
//		Name:   "quiz_abandoned",
//		UserID: "u1",
//		Data:   map[string]any{"completion_percentage": 40},
//	})
//
// # Rate limiting
//
// A rule's MaxSendsPerUser of 0 or less disables the cap. The SendCounter
// behind the gate can be the queue storage itself (counts derived from
// inserted entries) or a RedisCounter (explicit counters with cooldown
// TTLs).
package trigger
