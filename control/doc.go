// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package control exposes runtime metrics of the event loop through
// Prometheus collectors and an HTTP exposition handler.
package control
