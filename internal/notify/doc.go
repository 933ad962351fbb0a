// Package notify provides the ordered observer registry used for every
// fan-out in notelock: lifecycle transitions, editor note changes and data
// layer change streams.
//
// Registrations are identified by a Token rather than by comparing callbacks,
// since Go funcs are not comparable. Notification always iterates a snapshot,
// which makes it safe for an observer to register or unregister observers
// (including itself) while being notified.
package notify
