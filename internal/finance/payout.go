package finance

import "sort"

// Payout is a member's proportional share of the interest pot.
func Payout(memberSavings, totalSavings, pot int64) int64 {
	if totalSavings == 0 {
		return 0
	}
	return Round(float64(memberSavings) / float64(totalSavings) * float64(pot))
}

type Share struct {
	MemberID int64   `json:"member_id"`
	Savings  int64   `json:"savings"`
	Percent  float64 `json:"percent"`
	Amount   int64   `json:"amount"`
}

// Distribute splits pot across savers in proportion to their savings. The
// largest remainder method keeps the sum of shares exactly equal to pot.
// Shares are ordered by member id. All shares are 0 when nobody saved.
func Distribute(savings map[int64]int64, pot int64) []Share {
	ids := make([]int64, 0, len(savings))
	var total int64
	for id, amount := range savings {
		ids = append(ids, id)
		total += amount
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	shares := make([]Share, len(ids))
	for i, id := range ids {
		shares[i] = Share{MemberID: id, Savings: savings[id]}
	}
	if total <= 0 || pot == 0 {
		return shares
	}

	type rem struct {
		idx  int
		frac int64
	}
	rems := make([]rem, len(ids))
	var allocated int64
	for i, sh := range shares {
		// integer arithmetic avoids float drift on large pots
		num := sh.Savings * pot
		shares[i].Amount = num / total
		shares[i].Percent = Round2(Percent(float64(sh.Savings), float64(total)))
		allocated += shares[i].Amount
		rems[i] = rem{idx: i, frac: num % total}
	}

	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for left, k := pot-allocated, 0; left > 0; left, k = left-1, k+1 {
		shares[rems[k%len(rems)].idx].Amount++
	}
	return shares
}
