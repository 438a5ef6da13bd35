// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package txn

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/avault-algo/avault/internal/util"
)

type describer func(txn types.Transaction) string

func describePayment(txn types.Transaction) string {
	var desc strings.Builder
	desc.WriteString("Payment: " + util.FormatAlgos(uint64(txn.Amount)))
	desc.WriteString(fmt.Sprintf("\n  From: %s", util.FormatAddressShort(txn.Sender.String())))
	desc.WriteString(fmt.Sprintf("\n  To:   %s", util.FormatAddressShort(txn.Receiver.String())))

	if txn.Sender == txn.Receiver && txn.Amount == 0 && txn.RekeyTo.IsZero() {
		desc.WriteString("\n  [0 ALGO self-send]")
	}

	return desc.String()
}

func describeAssetTransfer(txn types.Transaction) string {
	var desc strings.Builder
	desc.WriteString(fmt.Sprintf("ASA Transfer: %d units of asset #%d", txn.AssetAmount, txn.XferAsset))
	desc.WriteString(fmt.Sprintf("\n  From: %s", util.FormatAddressShort(txn.Sender.String())))
	desc.WriteString(fmt.Sprintf("\n  To:   %s", util.FormatAddressShort(txn.AssetReceiver.String())))

	if !txn.AssetSender.IsZero() && txn.AssetSender != txn.Sender {
		desc.WriteString(fmt.Sprintf("\n  ⚠️  CLAWBACK FROM: %s", util.FormatAddressShort(txn.AssetSender.String())))
	}

	if !txn.AssetCloseTo.IsZero() {
		desc.WriteString(fmt.Sprintf("\n  Close remainder to: %s", util.FormatAddressShort(txn.AssetCloseTo.String())))
	}

	return desc.String()
}

func describeAssetConfig(txn types.Transaction) string {
	var desc strings.Builder
	if txn.ConfigAsset == 0 {
		desc.WriteString("Asset Creation")
		if txn.AssetParams.AssetName != "" {
			desc.WriteString(fmt.Sprintf("\n  Name: %s", txn.AssetParams.AssetName))
		}
		if txn.AssetParams.UnitName != "" {
			desc.WriteString(fmt.Sprintf("\n  Unit: %s", txn.AssetParams.UnitName))
		}
		desc.WriteString(fmt.Sprintf("\n  Total: %d", txn.AssetParams.Total))
		desc.WriteString(fmt.Sprintf("\n  Decimals: %d", txn.AssetParams.Decimals))
	} else {
		desc.WriteString(fmt.Sprintf("Asset Reconfiguration: asset #%d", txn.ConfigAsset))
	}
	return desc.String()
}

func describeAssetFreeze(txn types.Transaction) string {
	var desc strings.Builder
	desc.WriteString(fmt.Sprintf("Asset Freeze: asset #%d", txn.FreezeAsset))
	desc.WriteString(fmt.Sprintf("\n  Account: %s", util.FormatAddressShort(txn.FreezeAccount.String())))
	if txn.AssetFrozen {
		desc.WriteString("\n  Action: FREEZE")
	} else {
		desc.WriteString("\n  Action: UNFREEZE")
	}
	return desc.String()
}

func describeApplicationCall(txn types.Transaction) string {
	var desc strings.Builder

	switch txn.OnCompletion {
	case types.NoOpOC:
		desc.WriteString(fmt.Sprintf("App Call: #%d (NoOp)", txn.ApplicationID))
	case types.OptInOC:
		desc.WriteString(fmt.Sprintf("App OptIn: #%d", txn.ApplicationID))
	case types.CloseOutOC:
		desc.WriteString(fmt.Sprintf("App CloseOut: #%d", txn.ApplicationID))
	case types.ClearStateOC:
		desc.WriteString(fmt.Sprintf("App ClearState: #%d", txn.ApplicationID))
	case types.UpdateApplicationOC:
		desc.WriteString(fmt.Sprintf("App Update: #%d", txn.ApplicationID))
	case types.DeleteApplicationOC:
		desc.WriteString(fmt.Sprintf("App Delete: #%d", txn.ApplicationID))
	default:
		desc.WriteString(fmt.Sprintf("App Call: #%d", txn.ApplicationID))
	}

	if len(txn.ApplicationArgs) > 0 {
		desc.WriteString(fmt.Sprintf("\n  Args: %d argument(s)", len(txn.ApplicationArgs)))
		for i, arg := range txn.ApplicationArgs {
			if i >= 3 {
				desc.WriteString(fmt.Sprintf("\n    ... (%d more args)", len(txn.ApplicationArgs)-3))
				break
			}
			if isPrintable(arg) {
				desc.WriteString(fmt.Sprintf("\n    [%d]: %s", i, string(arg)))
			} else {
				desc.WriteString(fmt.Sprintf("\n    [%d]: 0x%s", i, hex.EncodeToString(arg)))
			}
		}
	}

	if len(txn.Accounts) > 0 {
		desc.WriteString(fmt.Sprintf("\n  Accounts: %d", len(txn.Accounts)))
	}
	if len(txn.ForeignApps) > 0 {
		desc.WriteString(fmt.Sprintf("\n  Foreign Apps: %v", txn.ForeignApps))
	}
	if len(txn.ForeignAssets) > 0 {
		desc.WriteString(fmt.Sprintf("\n  Foreign Assets: %v", txn.ForeignAssets))
	}

	return desc.String()
}

func describeKeyRegistration(txn types.Transaction) string {
	var desc strings.Builder

	emptyVotePK := types.VotePK{}
	emptySelectionPK := types.VRFPK{}
	if txn.VotePK == emptyVotePK && txn.SelectionPK == emptySelectionPK {
		desc.WriteString("Key Registration: Go OFFLINE")
	} else {
		desc.WriteString("Key Registration: Go ONLINE")
		desc.WriteString(fmt.Sprintf("\n  VotePK: %s...", hex.EncodeToString(txn.VotePK[:])[:16]))
		desc.WriteString(fmt.Sprintf("\n  SelectionPK: %s...", hex.EncodeToString(txn.SelectionPK[:])[:16]))
		desc.WriteString(fmt.Sprintf("\n  VoteFirst: %d", txn.VoteFirst))
		desc.WriteString(fmt.Sprintf("\n  VoteLast: %d", txn.VoteLast))
	}

	return desc.String()
}

func describeUnknown(txn types.Transaction) string {
	var desc strings.Builder
	desc.WriteString(fmt.Sprintf("Transaction Type: %s", txn.Type))
	desc.WriteString(fmt.Sprintf("\n  From: %s", util.FormatAddressShort(txn.Sender.String())))
	return desc.String()
}

// appendCommonFields adds fee, note, close remainder, rekey, group, and
// round info.
func appendCommonFields(desc *strings.Builder, txn types.Transaction) {
	fmt.Fprintf(desc, "\n  Fee: %s", util.FormatAlgos(uint64(txn.Fee)))

	if txn.GenesisID != "" {
		fmt.Fprintf(desc, "\n  Network: %s", txn.GenesisID)
	}

	if len(txn.Note) > 0 {
		if isPrintable(txn.Note) {
			fmt.Fprintf(desc, "\n  Note: %s", string(txn.Note))
		} else {
			fmt.Fprintf(desc, "\n  Note (hex): %s", hex.EncodeToString(txn.Note))
		}
	}

	if !txn.CloseRemainderTo.IsZero() {
		fmt.Fprintf(desc, "\n  Close remainder to: %s", util.FormatAddressShort(txn.CloseRemainderTo.String()))
	}

	if !txn.RekeyTo.IsZero() {
		if txn.RekeyTo == txn.Sender {
			desc.WriteString("\n  Rekey: restore self-authority")
		} else {
			fmt.Fprintf(desc, "\n  ⚠️  REKEY TO: %s", util.FormatAddressShort(txn.RekeyTo.String()))
		}
	}

	emptyGroup := types.Digest{}
	if txn.Group != emptyGroup {
		fmt.Fprintf(desc, "\n  Group: %s...", hex.EncodeToString(txn.Group[:])[:16])
		desc.WriteString("\n  [Part of atomic transaction group]")
	}
}

// describers maps transaction types to their describers.
var describers = map[string]describer{
	string(types.PaymentTx):         describePayment,
	string(types.AssetTransferTx):   describeAssetTransfer,
	string(types.AssetConfigTx):     describeAssetConfig,
	string(types.AssetFreezeTx):     describeAssetFreeze,
	string(types.ApplicationCallTx): describeApplicationCall,
	string(types.KeyRegistrationTx): describeKeyRegistration,
}

// Summary renders a trust-minimized human-readable description derived
// directly from the transaction fields. It is what device displays, the
// shell confirm step, and audit entries show.
func Summary(txn types.Transaction) string {
	d, exists := describers[string(txn.Type)]
	if !exists {
		d = describeUnknown
	}

	var builder strings.Builder
	builder.WriteString(d(txn))
	appendCommonFields(&builder, txn)

	return builder.String()
}

func isPrintable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return true
}
