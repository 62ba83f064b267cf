// Package hookerr defines the failure taxonomy shared by the hook core.
// Every failure is terminal for its triggering event and leaves no
// partial state behind.
package hookerr

import sdkerrors "cosmossdk.io/errors"

const codespace = "driftfee"

var (
	// ErrUnauthorized rejects an admin-surface mutation from a
	// non-admin identity.
	ErrUnauthorized = sdkerrors.Register(codespace, 2, "caller is not the admin")
	// ErrInvalidArgument rejects malformed configuration input.
	ErrInvalidArgument = sdkerrors.Register(codespace, 3, "invalid argument")
	// ErrOutOfRange rejects a price snapshot outside valid bounds.
	ErrOutOfRange = sdkerrors.Register(codespace, 4, "price out of range")
	// ErrArithmetic rejects a degenerate price or a fee overflow.
	ErrArithmetic = sdkerrors.Register(codespace, 5, "arithmetic failure")
	// ErrForbidden rejects an action from an identity lacking the
	// required capability.
	ErrForbidden = sdkerrors.Register(codespace, 6, "action forbidden")
)
