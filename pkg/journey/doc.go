// Package journey drives multi-stage user lifecycles (onboarding, nurture,
// re-engagement) as per-user state machines.
//
// A journey Template is an ordered stage list; each stage has a delay, entry
// conditions and the trigger events it fires. An Instance tracks one user's
// position in one journey type, at most one active instance per pair.
//
// Advancement is driven two ways: reactively by ProcessUserEvent when the
// user does something, and proactively by a periodic sweep that applies the
// same elapsed-time check. An event named in the template's completion set
// finishes the instance immediately, whatever stage it is on. When a stage's
// entry conditions evaluate false at advancement time, the stage is recorded
// but fires nothing, and the instance moves on to the next stage whose
// conditions hold; running out of stages completes the instance.
//
// Stage trigger events re-enter the trigger engine carrying the stage delay
// as their scheduling time, so the notification lands after the delay even
// though the event fires at advancement.
//
// Pausing stores a timestamp without touching the instance's stage; resuming
// shifts the stage clock forward by the paused duration, so paused time
// never counts against a stage delay.
package journey
