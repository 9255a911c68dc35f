// Package errs holds the error kinds shared by the credit and loan domains.
// Every value is recoverable by the caller; the text doubles as the API error code.
package errs

import "errors"

var (
	ErrInvalidAttestation  = errors.New("invalid_attestation")
	ErrDuplicateIdentity   = errors.New("duplicate_identity")
	ErrIdentityNotFound    = errors.New("identity_not_found")
	ErrIdentityFrozen      = errors.New("identity_frozen")
	ErrInsufficientCredit  = errors.New("insufficient_credit")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrIncompleteRepayment = errors.New("incomplete_repayment")
	ErrLockTimeout         = errors.New("lock_timeout")
	ErrVaultTransferFailed = errors.New("vault_transfer_failed")

	ErrLoanNotFound       = errors.New("loan_not_found")
	ErrObligationNotFound = errors.New("obligation_not_found")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidDuration    = errors.New("invalid_duration")
	ErrInvalidDevice      = errors.New("invalid_device_token")
	ErrInvalidObligation  = errors.New("invalid_obligation")
	ErrOutstandingLoan    = errors.New("outstanding_loan")
	ErrWithdrawalRejected = errors.New("withdrawal_rejected")
	ErrSessionInvalid     = errors.New("session_invalid")
)

// Code returns the API error code for err, falling back to "internal_error"
// for anything that is not one of the kinds above.
func Code(err error) string {
	for _, known := range all {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal_error"
}

var all = []error{
	ErrInvalidAttestation,
	ErrDuplicateIdentity,
	ErrIdentityNotFound,
	ErrIdentityFrozen,
	ErrInsufficientCredit,
	ErrInvalidTransition,
	ErrIncompleteRepayment,
	ErrLockTimeout,
	ErrVaultTransferFailed,
	ErrLoanNotFound,
	ErrObligationNotFound,
	ErrInvalidAmount,
	ErrInvalidDuration,
	ErrInvalidDevice,
	ErrInvalidObligation,
	ErrOutstandingLoan,
	ErrWithdrawalRejected,
	ErrSessionInvalid,
}
