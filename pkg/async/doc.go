// Package async provides a minimal future abstraction for concurrent
// fan-out work with isolated failures.
//
// The trigger and journey engines start one future per rule or instance and
// then Settle the whole batch: every unit runs to completion, panics are
// recovered into errors, and one unit's failure never cancels or masks its
// siblings.
//
//	futures := make([]*async.Future[string], 0, len(items))
//	for _, item := range items {
//	    futures = append(futures, async.Go(func() (string, error) {
//	        return process(item)
//	    }))
//	}
//	for _, out := range async.Settle(futures...) {
//	    // out.Result / out.Err, independently per unit
//	}
package async
