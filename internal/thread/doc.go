// Package thread implements conversation continuation as an emergent
// property of task adjacency: the most recent completed, unclosed task
// for a (source, chatId) key within the TTL window is the thread, and
// its history seeds the next run. Closing a thread flips a flag on that
// task so the next message starts fresh.
package thread
