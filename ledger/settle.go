package ledger

import (
	"sort"

	"github.com/google/uuid"
)

// Transfer is one suggested payment that clears (part of) a debt.
type Transfer struct {
	From   uuid.UUID
	To     uuid.UUID
	Amount Cents
}

type position struct {
	id     uuid.UUID
	amount Cents
}

// Settle turns net balances into a short list of transfers using greedy
// matching: largest debtor against largest creditor until one side runs out.
//
// Zero balances take no part. Equal balances keep their input order, so the
// result is deterministic for a given balance slice. At most
// debtors+creditors-1 transfers are emitted and every amount is positive.
func Settle(balances []Balance) []Transfer {
	var debtors, creditors []position
	for _, b := range balances {
		switch {
		case b.Amount < 0:
			debtors = append(debtors, position{b.UserID, -b.Amount})
		case b.Amount > 0:
			creditors = append(creditors, position{b.UserID, b.Amount})
		}
	}

	// Debtors most negative first, creditors largest first.
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].amount > debtors[j].amount })
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].amount > creditors[j].amount })

	transfers := []Transfer{}
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)

		transfers = append(transfers, Transfer{
			From:   debtors[i].id,
			To:     creditors[j].id,
			Amount: amount,
		})

		debtors[i].amount -= amount
		creditors[j].amount -= amount

		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}
	return transfers
}
