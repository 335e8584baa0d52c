// Package session
// Author: momentics <momentics@gmail.com>
//
// Connection slot bookkeeping: a fixed-capacity registry associating integer
// handles with a socket descriptor and a staging ring each.
package session
