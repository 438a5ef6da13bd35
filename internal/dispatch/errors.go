// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package dispatch

import "errors"

// ErrRequestConsumed means the signing request was already dispatched once.
var ErrRequestConsumed = errors.New("signing request already dispatched")

// ErrNoAuthority means no backend can exercise signing authority for the
// account.
var ErrNoAuthority = errors.New("no signing authority available")

// ErrRequiresUnlock means the wallet session is locked. The dispatcher never
// prompts; the caller obtains an unlocked session and retries.
var ErrRequiresUnlock = errors.New("wallet is locked")

// ErrPolicyRejected means a policy check raised a critical violation.
var ErrPolicyRejected = errors.New("rejected by signing policy")
