// Package connection provides connection lifecycle management for a
// receiver session.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter to prevent thundering herd
//   - Connection state tracking
//   - Automatic reconnection on connection loss
//
// # Reconnection Strategy
//
// When a connection is lost, the manager uses exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful or the attempt budget runs out
//  5. Reset to 1s on successful reconnection
//
// # Jitter
//
// A random jitter of up to 25% is added to each delay so that many
// controllers losing the same device do not reconnect in lockstep.
//
// The manager does not own a socket. It drives a ConnectFunc supplied by
// the caller, which builds a fresh transport session per attempt; a torn
// down session is never reused.
package connection
