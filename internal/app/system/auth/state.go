// internal/app/system/auth/state.go
package auth

import (
	"github.com/civicwatch/civicwatch/internal/domain/cerr"
	"github.com/civicwatch/civicwatch/internal/domain/models"
)

// State is the single session snapshot the UI reads. There is exactly
// one per Manager, mutated only by the reducer; readers always get a
// copy.
//
// The initial state is "uninitialized": no user, loading=true, until
// the cold-start session restore resolves one way or the other.
type State struct {
	User            *models.User
	IsAuthenticated bool
	IsLoading       bool
	Err             *cerr.Error
}

// action is a state transition request. Both explicit invocations
// (Login, Register, Logout) and provider notifications reduce through
// the same queue, so the two event sources can never interleave a
// half-applied transition.
type action interface{ isAction() }

type (
	// actionLoading marks the start of a login/register flow.
	actionLoading struct{}

	// actionAuthenticated installs a verified directory profile.
	actionAuthenticated struct{ user *models.User }

	// actionSignedOut resets to anonymous. err, when non-nil, is the
	// failure that forced the sign-out.
	actionSignedOut struct{ err *cerr.Error }

	// actionResolved ends the uninitialized loading phase without a
	// session (cold start with no restorable token).
	actionResolved struct{}

	// actionClearError drops the error without touching the session.
	actionClearError struct{}
)

func (actionLoading) isAction()       {}
func (actionAuthenticated) isAction() {}
func (actionSignedOut) isAction()     {}
func (actionResolved) isAction()      {}
func (actionClearError) isAction()    {}

// reduce is the pure transition function. It never performs I/O.
func reduce(s State, a action) State {
	switch a := a.(type) {
	case actionLoading:
		s.IsLoading = true
		s.Err = nil
	case actionAuthenticated:
		s.User = a.user
		s.IsAuthenticated = true
		s.IsLoading = false
		s.Err = nil
	case actionSignedOut:
		s.User = nil
		s.IsAuthenticated = false
		s.IsLoading = false
		s.Err = a.err
	case actionResolved:
		s.IsLoading = false
	case actionClearError:
		s.Err = nil
	}
	return s
}
