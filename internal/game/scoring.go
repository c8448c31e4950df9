package game

// Settle computes the points credited to each wagering participant when bet
// resolves with winningOption. The wager cost was already debited at
// placement, so a delta of WagerCost is a refund and 0 is a loss.
//
// Winners split the whole pot evenly. The floor-division remainder is not
// distributed. When nobody or everybody picked the winner, every stake is
// refunded.
func Settle(bet *Bet, wagers []*Wager, winningOption string) map[string]int {
	out := make(map[string]int, len(wagers))
	if len(wagers) == 0 {
		return out
	}

	winners := 0
	for _, w := range wagers {
		if w.IsWinner(winningOption) {
			winners++
		}
	}

	if winners == 0 || winners == len(wagers) {
		for _, w := range wagers {
			out[w.UserID] = bet.WagerCost
		}
		return out
	}

	pot := bet.WagerCost * len(wagers)
	share := pot / winners
	for _, w := range wagers {
		if w.IsWinner(winningOption) {
			out[w.UserID] = share
		} else {
			out[w.UserID] = 0
		}
	}
	return out
}

// Pot is the total staked on a bet.
func Pot(bet *Bet, wagerCount int) int {
	return bet.WagerCost * wagerCount
}
