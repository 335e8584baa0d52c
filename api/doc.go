// Package api
// Author: momentics <momentics@gmail.com>
//
// Shared contracts for hioload-echo: the contiguous-view byte ring used for
// per-connection staging, and the structured error values every layer reports.
package api
