// Package events provides types and interfaces for an event-driven architecture.
//
// Services emit a TaskChangedEvent whenever they mutate a task, and the task
// status scheduler listens for those events to re-derive which tasks need
// polling. Neither side imports the other.
//
// The primary components are:
// - TaskChangedEvent: describes a change to one task
// - EventHandler: interface for components that react to events
// - EventEmitter: interface for components that publish events
package events
