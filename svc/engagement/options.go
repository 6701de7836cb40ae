package engagement

import "log/slog"

type serviceOptions struct {
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

// WithLogger sets the logger for the Service.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if log != nil {
			o.logger = log
		}
	}
}
