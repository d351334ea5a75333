package main

import (
	sarierrors "github.com/sari-dev/sari/internal/errors"
)

// exitCodeFor maps a returned error onto a process exit code per §7 "CLI
// surface": 0 is reserved for success (app.Run returning nil), and every
// failure here classifies into one of a handful of codes an invoking
// script can branch on, rather than a single undifferentiated 1.
func exitCodeFor(err error) int {
	code, ok := sarierrors.AsCode(err)
	if !ok {
		return 1
	}
	switch code {
	case sarierrors.InvalidArgs:
		return 2
	case sarierrors.NotIndexed, sarierrors.RepoNotFound:
		return 3
	case sarierrors.ErrEngineNotInstalled, sarierrors.ErrEngineInit, sarierrors.ErrEngineUnavailable, sarierrors.ErrEngineIndex, sarierrors.ErrEngineQuery, sarierrors.ErrEngineRebuild:
		return 4
	case sarierrors.ErrDaemonSingletonViolation:
		return 5
	default:
		return 1
	}
}
