// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package manager

import "github.com/luxfi/ids"

// Ledger is the token-custody collaborator. The manager instructs it as a
// side effect of outbox staging and inbox release; it does not implement any
// token ledger mechanics itself. Amounts are in the local token's decimals.
//
// Ledger calls happen inside the manager's transaction, before the state
// commit. If the commit fails after a call succeeded, the operation is
// retried with the same arguments; implementations that cannot share the
// manager's transaction must make these calls idempotent per transfer.
type Ledger interface {
	// Lock escrows [amount] of the managed token from [sender].
	Lock(sender ids.ID, amount uint64) error
	// Unlock releases [amount] of escrowed tokens to [recipient].
	Unlock(recipient ids.ID, amount uint64) error
	// Burn destroys [amount] of the managed token held by [sender].
	Burn(sender ids.ID, amount uint64) error
	// Mint creates [amount] of the managed token for [recipient].
	Mint(recipient ids.ID, amount uint64) error
}
