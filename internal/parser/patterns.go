package parser

import (
	"regexp"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/gateway"
)

// patternSet holds the extraction patterns for one gateway. ids are tried
// in order; the first submatch wins. A set "recognizes" a message only when
// it yields both an external id and an amount.
type patternSet struct {
	gateway gateway.Gateway
	ids     []*regexp.Regexp
	amount  *regexp.Regexp
	fee     *regexp.Regexp
	balance *regexp.Regexp
	phone   *regexp.Regexp
	date    *regexp.Regexp
}

var (
	reTrxID = regexp.MustCompile(`(?i)TrxID\s+([A-Z0-9]{8,15})`)
	reTxnID = regexp.MustCompile(`(?i)TxnID[:\s]+([A-Z0-9]{6,15})`)
	reTxID  = regexp.MustCompile(`(?i)TxID[:\s]+([A-Z0-9]{6,15})`)
	reRef   = regexp.MustCompile(`(?i)Ref\s+([A-Z0-9]{5,15})`)

	reAmount  = regexp.MustCompile(`(?i)(?:Tk|BDT)\s*([\d,]+\.?\d*)`)
	reFee     = regexp.MustCompile(`(?i)Fee\s*(?:Tk|BDT)?\s*([\d,]+\.?\d*)`)
	reBalance = regexp.MustCompile(`(?i)Balance\s*(?:Tk|BDT)?\s*([\d,]+\.?\d*)`)
	rePhone   = regexp.MustCompile(`(?i)from\s*(\d{11})`)
	reDate    = regexp.MustCompile(`(?i)at\s*(\d{2}/\d{2}/\d{4}\s+\d{1,2}:\d{2})`)
)

// patternSets is the ordered dispatch list. The trailing Unknown set keeps
// messages with a recognizable TrxID but no wallet keyword parseable, so
// the raw text still lands in the audit trail with structured fields.
var patternSets = []patternSet{
	{
		gateway: gateway.BKash,
		ids:     []*regexp.Regexp{reTrxID, reRef},
		amount:  reAmount,
		fee:     reFee,
		balance: reBalance,
		phone:   rePhone,
		date:    reDate,
	},
	{
		gateway: gateway.Nagad,
		ids:     []*regexp.Regexp{reTxnID, reTrxID},
		amount:  reAmount,
		fee:     reFee,
		balance: reBalance,
		phone:   rePhone,
		date:    reDate,
	},
	{
		gateway: gateway.Rocket,
		ids:     []*regexp.Regexp{reTxID, reTrxID, reRef},
		amount:  reAmount,
		fee:     reFee,
		balance: reBalance,
		phone:   rePhone,
		date:    reDate,
	},
	{
		gateway: gateway.Upay,
		ids:     []*regexp.Regexp{reTrxID, reTxnID},
		amount:  reAmount,
		fee:     reFee,
		balance: reBalance,
		phone:   rePhone,
		date:    reDate,
	},
	{
		gateway: gateway.MCash,
		ids:     []*regexp.Regexp{reTxID, reTrxID},
		amount:  reAmount,
		fee:     reFee,
		balance: reBalance,
		phone:   rePhone,
		date:    reDate,
	},
	{
		gateway: gateway.Unknown,
		ids:     []*regexp.Regexp{reTrxID, reTxnID, reTxID, reRef},
		amount:  reAmount,
		fee:     reFee,
		balance: reBalance,
		phone:   rePhone,
		date:    reDate,
	},
}

func setFor(g gateway.Gateway) *patternSet {
	for i := range patternSets {
		if patternSets[i].gateway == g {
			return &patternSets[i]
		}
	}
	return nil
}
