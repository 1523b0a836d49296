// Package events renders and publishes engine lifecycle notifications:
// task start and completion, step transitions, progress messages and
// thread changes. Delivery goes through the host's optional publisher
// callback and is strictly fire-and-forget.
package events
