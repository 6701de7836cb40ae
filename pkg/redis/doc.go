// Package redis bootstraps the Redis connection used for trigger rate-limit
// counters: connection-string config, startup retries, and a health check
// helper.
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	counter, err := trigger.NewRedisCounter(client)
package redis
