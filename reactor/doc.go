// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the completion-based event reactor driving every
// socket through io_uring. One submission/completion ring serves the whole
// process; each connection alternates strictly between one outstanding recv
// and one outstanding send.
package reactor
