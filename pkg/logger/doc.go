// Package logger provides a small factory around log/slog plus attribute
// helpers shared by the notification engine packages.
//
// Every service in this module accepts a *slog.Logger and defaults to
// slog.Default(); this package exists so applications can build a
// consistently configured logger in one line:
//
//	log := logger.New(logger.WithProduction("notification-engine"))
//	logger.SetAsDefault(log)
//
// The attribute helpers (logger.Trigger, logger.Journey, logger.EntryID, ...)
// keep log keys uniform across the trigger, delivery, and journey packages.
package logger
