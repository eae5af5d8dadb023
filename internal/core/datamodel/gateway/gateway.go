package gateway

import "strings"

// Gateway identifies a mobile-wallet payment provider.
type Gateway string

const (
	BKash   Gateway = "bkash"
	Nagad   Gateway = "nagad"
	Rocket  Gateway = "rocket"
	Upay    Gateway = "upay"
	MCash   Gateway = "mcash"
	COD     Gateway = "cod"
	Unknown Gateway = "unknown"
)

// Parseable gateways have SMS pattern sets; COD never produces an SMS.
var parseable = []Gateway{BKash, Nagad, Rocket, Upay, MCash}

// claimable is the set accepted by the storefront claim endpoint.
var claimable = map[Gateway]bool{
	BKash:  true,
	Nagad:  true,
	Rocket: true,
	COD:    true,
}

func Parseable() []Gateway {
	out := make([]Gateway, len(parseable))
	copy(out, parseable)
	return out
}

func ClaimableNames() []string {
	return []string{string(BKash), string(Nagad), string(Rocket), string(COD)}
}

// Normalize lower-cases and maps aliases ("b-kash") onto canonical names.
// Anything unrecognized comes back as Unknown.
func Normalize(name string) Gateway {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bkash", "b-kash":
		return BKash
	case "nagad":
		return Nagad
	case "rocket", "dbbl", "dutch-bangla":
		return Rocket
	case "upay":
		return Upay
	case "mcash":
		return MCash
	case "cod", "cash_on_delivery":
		return COD
	default:
		return Unknown
	}
}

func (g Gateway) Claimable() bool {
	return claimable[g]
}

func (g Gateway) String() string {
	return string(g)
}

// Infer scans a message body for wallet keywords when no explicit gateway
// hint accompanied the notification.
func Infer(message string) Gateway {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "bkash") || strings.Contains(lower, "b-kash"):
		return BKash
	case strings.Contains(lower, "nagad"):
		return Nagad
	case strings.Contains(lower, "rocket"):
		return Rocket
	case strings.Contains(lower, "upay"):
		return Upay
	case strings.Contains(lower, "mcash"):
		return MCash
	}
	return Unknown
}
