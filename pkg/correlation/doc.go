// Package correlation matches device replies to the commands that asked
// for them.
//
// The protocol carries no message identifiers: a reply is linked to its
// request only by sharing the same three-character command prefix. The
// Table keeps a FIFO queue of waiters per prefix; each inbound message is
// handed to the oldest live waiter for its prefix, and every waiter is
// resolved exactly once, by arrival, timeout, cancellation, or connection
// failure, whichever claims it first.
//
// Waiters must be registered before the command is written to the socket.
// Registering after the write loses replies from fast devices.
package correlation
