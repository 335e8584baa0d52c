// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the raw IPv4 listening socket for hioload-echo.
// The listener hands out a plain descriptor because every accept on it is
// performed by the kernel through io_uring submissions, never by the
// net package.
package tcp
