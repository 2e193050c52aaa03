package ledger

import "github.com/google/uuid"

// Balance is a user's net position. Positive means the group owes the user,
// negative means the user owes the group.
type Balance struct {
	UserID uuid.UUID
	Amount Cents
}

// OpenShare is an unpaid share: Debtor still owes Amount to Creditor.
type OpenShare struct {
	Debtor   uuid.UUID
	Creditor uuid.UUID
	Amount   Cents
}

// Snapshot is the ledger state the calculators work from. Users fixes the
// output order and the order in which fair-share remainders are assigned.
type Snapshot struct {
	Users         []uuid.UUID
	TotalExpenses Cents
	Paid          map[uuid.UUID]Cents
	SettledOut    map[uuid.UUID]Cents
	SettledIn     map[uuid.UUID]Cents
	OpenShares    []OpenShare
}

// EqualSplitBalances computes balance = paid - fair share + settlements paid -
// settlements received for every user. An empty user set yields no balances.
func EqualSplitBalances(s Snapshot) ([]Balance, error) {
	if len(s.Users) == 0 {
		return []Balance{}, nil
	}

	fair, err := SplitEvenly(s.TotalExpenses, len(s.Users))
	if err != nil {
		return nil, err
	}

	balances := make([]Balance, len(s.Users))
	for i, id := range s.Users {
		base := s.Paid[id] - fair[i]
		balances[i] = Balance{
			UserID: id,
			Amount: base + s.SettledOut[id] - s.SettledIn[id],
		}
	}
	return balances, nil
}

// ShareBalances nets every unpaid share against the expense payer and then
// applies settlements the same way EqualSplitBalances does.
func ShareBalances(s Snapshot) []Balance {
	balances := make([]Balance, 0, len(s.Users))
	index := make(map[uuid.UUID]int, len(s.Users))

	add := func(id uuid.UUID, amount Cents) {
		i, ok := index[id]
		if !ok {
			i = len(balances)
			index[id] = i
			balances = append(balances, Balance{UserID: id})
		}
		balances[i].Amount += amount
	}

	for _, id := range s.Users {
		add(id, 0)
	}
	for _, share := range s.OpenShares {
		add(share.Debtor, -share.Amount)
		add(share.Creditor, share.Amount)
	}
	for _, id := range s.Users {
		add(id, s.SettledOut[id]-s.SettledIn[id])
	}
	return balances
}

// NetTotals returns the sum of credits and the sum of debts (as a positive number).
func NetTotals(balances []Balance) (credit, debt Cents) {
	for _, b := range balances {
		if b.Amount > 0 {
			credit += b.Amount
		} else {
			debt -= b.Amount
		}
	}
	return credit, debt
}
