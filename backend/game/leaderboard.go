package game

import (
	"sort"

	"github.com/adraglia/smashparty/backend/model"
)

// computeLeaderboard derives the end-of-game rankings from the ledger
// aggregates. Players and items with zero committed votes are left out
// rather than ranked with a sentinel. Ties keep join/submission order.
func computeLeaderboard(players []model.Player, items []model.Item, ledger *voteLedger) model.Leaderboard {
	lb := model.Leaderboard{
		PlayersByAverage: make([]model.PlayerStanding, 0, len(players)),
		ItemsByAverage:   make([]model.ItemStanding, 0, len(items)),
	}

	for _, p := range players {
		avg, ok := ledger.playerAverage(p.ID)
		if !ok {
			continue
		}
		pa := ledger.players[p.ID]
		lb.PlayersByAverage = append(lb.PlayersByAverage, model.PlayerStanding{
			PlayerID:  p.ID,
			Name:      p.Name,
			VoteCount: pa.voteCount,
			AverageMs: avg,
			FastestMs: pa.fastestMs,
			SlowestMs: pa.slowestMs,
		})
	}
	sort.SliceStable(lb.PlayersByAverage, func(i, j int) bool {
		return lb.PlayersByAverage[i].AverageMs < lb.PlayersByAverage[j].AverageMs
	})

	for _, it := range items {
		avg, ok := ledger.itemAverage(it.Index)
		if !ok {
			continue
		}
		lb.ItemsByAverage = append(lb.ItemsByAverage, model.ItemStanding{
			ItemIndex: it.Index,
			Label:     it.Label,
			VoteCount: ledger.items[it.Index].voteCount,
			AverageMs: avg,
		})
	}
	sort.SliceStable(lb.ItemsByAverage, func(i, j int) bool {
		return lb.ItemsByAverage[i].AverageMs < lb.ItemsByAverage[j].AverageMs
	})

	if n := len(lb.PlayersByAverage); n > 0 {
		lb.FastestPlayer = &lb.PlayersByAverage[0]
		lb.SlowestPlayer = &lb.PlayersByAverage[n-1]
	}
	if n := len(lb.ItemsByAverage); n > 0 {
		lb.FastestItem = &lb.ItemsByAverage[0]
		lb.SlowestItem = &lb.ItemsByAverage[n-1]
	}
	return lb
}
