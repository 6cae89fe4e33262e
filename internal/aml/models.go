package aml

import (
	"time"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Power is a bit flag describing what an AML authority may do. Powers
// combine with bitwise or; an authority holding PowerFreeze|PowerSeize can
// freeze accounts and seize funds but not touch the blacklist.
type Power uint8

const (
	PowerView Power = 1 << iota
	PowerFreeze
	PowerSeize
	PowerModifyBlacklist
)

// AllPowers grants every capability. Used for the lead supervisory
// authority in a deployment.
const AllPowers = PowerView | PowerFreeze | PowerSeize | PowerModifyBlacklist

// orderedPowers fixes the rendering order for Names.
var orderedPowers = []Power{PowerView, PowerFreeze, PowerSeize, PowerModifyBlacklist}

var powerNames = map[Power]string{
	PowerView:            "view",
	PowerFreeze:          "freeze",
	PowerSeize:           "seize",
	PowerModifyBlacklist: "modify_blacklist",
}

var powersByName = map[string]Power{
	"view":             PowerView,
	"freeze":           PowerFreeze,
	"seize":            PowerSeize,
	"modify_blacklist": PowerModifyBlacklist,
}

// ParsePowers folds a list of power names into a bit field.
//
// Errors: returns CodeValidation for any unknown name.
func ParsePowers(names []string) (Power, error) {
	var powers Power
	for _, name := range names {
		p, ok := powersByName[name]
		if !ok {
			return 0, dErrors.New(dErrors.CodeValidation, "unknown power: "+name)
		}
		powers |= p
	}
	return powers, nil
}

// Has reports whether every bit in flag is present.
func (p Power) Has(flag Power) bool {
	return p&flag == flag
}

// Names renders the bit field as a stable list of power names.
func (p Power) Names() []string {
	var names []string
	for _, flag := range orderedPowers {
		if p.Has(flag) {
			names = append(names, powerNames[flag])
		}
	}
	return names
}

// Authority is a registered AML supervisory body. AuthorityID is the
// external identifier the regulator is known by, carried verbatim.
// Deactivation is terminal for the record; all of its powers stop working
// at once while the audit history it produced stays attributable.
type Authority struct {
	Key            domain.AuthorityKey
	AuthorityID    string
	Powers         Power
	Active         bool
	RegisteredTime time.Time
	LastActionTime time.Time
}

// BlacklistEntry marks one user as blocked for monetary operations,
// whatever accounts they hold. Entries are never deleted; deactivation
// clears the block and keeps the history. A deactivated entry can be
// re-listed, which refreshes reason, authority, and creation time.
type BlacklistEntry struct {
	UserID       domain.UserID
	Authority    domain.AuthorityKey
	Reason       string
	Active       bool
	CreationTime time.Time
	UpdatedTime  time.Time
}
