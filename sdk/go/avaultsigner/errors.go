// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package avaultsigner

import "errors"

// ErrUnavailable tells the wallet the signer cannot serve right now (HTTP
// 503). Wrap it for temporary faults: key storage offline, HSM busy.
var ErrUnavailable = errors.New("signer unavailable")

// Denied refuses a signing request with an operator-visible reason (HTTP
// 403). The wallet reports the reason verbatim.
type Denied struct {
	Reason string
}

func (e *Denied) Error() string {
	if e.Reason == "" {
		return "signing denied"
	}
	return "signing denied: " + e.Reason
}
