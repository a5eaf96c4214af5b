// Package timeouts defines shared timing constants used across the game
// runtime. Centralizing these values prevents drift between components and
// makes the durations discoverable.
package timeouts

import "time"

// LobbyCountdown is how long a lobby stays open before the game either
// auto-starts or is torn down for lack of players.
const LobbyCountdown = 60 * time.Second

// KickSelection caps how long a selector has to pick a target before the
// penalty elimination fires.
const KickSelection = 30 * time.Second

// KickWarningLead is how long before the kick deadline the warning render
// is sent.
const KickWarningLead = 10 * time.Second

// SpinDelay is the pause between entering the spinning phase and drawing a
// selector, leaving the presentation layer time to animate.
const SpinDelay = 2 * time.Second

// SessionLock bounds an advisory session lock lease. A holder that exceeds
// it is considered stuck and loses the lease.
const SessionLock = 30 * time.Second

// TerminalRetention is how long completed and cancelled session records are
// kept in the store before expiring.
const TerminalRetention = 24 * time.Hour

// Shutdown limits how long the runtime waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
