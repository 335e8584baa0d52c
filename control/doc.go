// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package control carries the runtime observability surface: atomic counters
// with a bounded snapshot history, and a registry of debug probes.
package control
