// Package personalization resolves notification templates and substitutes
// variables into their content.
//
// Template selection prefers an exact trigger-type match, falls back to the
// template flagged default, and finally to the first active template for the
// channel. Substitution is literal: a fixed variable set (user_id, name,
// email, date, time) plus caller-supplied data, no conditionals or loops,
// unmatched placeholders left verbatim.
//
// Preferences implements the channel consent gate: a channel is allowed only
// when its boolean flag is enabled, promotional templates additionally
// require marketing consent, and a global opt-out disables everything.
package personalization
