// Package domain holds the session document and the pure game rules that
// operate on it: roster management, status transitions, and kick
// resolution. Nothing in this package touches storage, timers, or locks;
// callers persist the mutated document themselves.
package domain
