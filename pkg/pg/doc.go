// Package pg bootstraps the PostgreSQL layer behind the durable notification
// queue and analytics tables: a pooled pgx connection with startup retries, a
// goose-driven migration runner, and health and error helpers.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//		log.Fatal(err)
//	}
//
//	store, err := delivery.NewPostgresStorage(pool)
package pg
