// Package parser extracts structured transaction fields from free-text
// wallet notifications. It is pure: no store access, no clock beyond the
// caller-supplied fallback timestamp.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/gateway"
)

// Result is a recognized notification. Amount and ExternalID are always
// set; the remaining fields are best-effort.
type Result struct {
	Gateway     gateway.Gateway
	ExternalID  string
	Amount      decimal.Decimal
	Fee         *decimal.Decimal
	NewBalance  *decimal.Decimal
	SenderPhone *string
	OccurredAt  time.Time
}

// Parse applies the gateway pattern sets to raw. When hint names a known
// gateway only that gateway's set is tried; otherwise the gateway is
// inferred from the message body and the sets are tried in order. The
// second return value is false for an unrecognized message; callers store
// the raw text for manual triage instead of failing.
//
// ingestedAt is the fallback for OccurredAt when the body carries no
// parseable DD/MM/YYYY HH:MM token.
func Parse(hint gateway.Gateway, raw string, ingestedAt time.Time) (*Result, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	if hint != "" && hint != gateway.Unknown {
		set := setFor(hint)
		if set == nil {
			return nil, false
		}
		return extract(set, hint, raw, ingestedAt)
	}

	inferred := gateway.Infer(raw)
	if inferred != gateway.Unknown {
		if res, ok := extract(setFor(inferred), inferred, raw, ingestedAt); ok {
			return res, true
		}
	}

	for i := range patternSets {
		set := &patternSets[i]
		if inferred != gateway.Unknown && set.gateway == inferred {
			continue
		}
		if res, ok := extract(set, set.gateway, raw, ingestedAt); ok {
			return res, true
		}
	}

	return nil, false
}

func extract(set *patternSet, g gateway.Gateway, raw string, ingestedAt time.Time) (*Result, bool) {
	externalID := firstID(set.ids, raw)
	if externalID == "" {
		return nil, false
	}

	amount, ok := extractDecimal(set.amount, raw)
	if !ok {
		// no numeric token next to the amount keyword: the set does not
		// recognize this message, never default to zero
		return nil, false
	}

	res := &Result{
		Gateway:    g,
		ExternalID: externalID,
		Amount:     amount,
		OccurredAt: ingestedAt,
	}

	if fee, ok := extractDecimal(set.fee, raw); ok {
		res.Fee = &fee
	}
	if balance, ok := extractDecimal(set.balance, raw); ok {
		res.NewBalance = &balance
	}
	if m := set.phone.FindStringSubmatch(raw); m != nil {
		phone := m[1]
		res.SenderPhone = &phone
	}
	if ts, ok := extractTimestamp(set.date, raw); ok {
		res.OccurredAt = ts
	}

	return res, true
}

func firstID(ids []*regexp.Regexp, raw string) string {
	for _, re := range ids {
		if m := re.FindStringSubmatch(raw); m != nil {
			return strings.ToUpper(strings.TrimSpace(m[1]))
		}
	}
	return ""
}

func extractDecimal(re *regexp.Regexp, raw string) (decimal.Decimal, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil || m[1] == "" {
		return decimal.Zero, false
	}
	// wallet SMS format thousands with commas
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// extractTimestamp parses the "at DD/MM/YYYY HH:MM" token. The hour may be
// a single digit, which rules out a straight time.Parse layout.
func extractTimestamp(re *regexp.Regexp, raw string) (time.Time, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}

	fields := strings.Fields(m[1])
	if len(fields) != 2 {
		return time.Time{}, false
	}

	dateParts := strings.Split(fields[0], "/")
	timeParts := strings.Split(fields[1], ":")
	if len(dateParts) != 3 || len(timeParts) != 2 {
		return time.Time{}, false
	}

	day, err1 := strconv.Atoi(dateParts[0])
	month, err2 := strconv.Atoi(dateParts[1])
	year, err3 := strconv.Atoi(dateParts[2])
	hour, err4 := strconv.Atoi(timeParts[0])
	minute, err5 := strconv.Atoi(timeParts[1])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local), true
}
