package domain

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddItem validates and appends a submission. All enforcement lives
// here so transport handlers stay dumb: room status, turn/mode
// authorization, text trimming and clamping, case-insensitive
// duplicate rejection and the per-game item cap.
func (r *Room) AddItem(playerId, text, emoji string, now time.Time) (*Item, error) {
	if r.Status != StatusInProgress {
		return nil, ErrWrongStatus
	}
	player := r.Player(playerId)
	if player == nil {
		return nil, ErrPlayerNotFound
	}
	switch r.Config.SubmissionMode {
	case SubmissionHostOnly:
		if playerId != r.HostPlayerId {
			return nil, ErrNotHost
		}
	default:
		if playerId != r.CurrentTurnPlayerId {
			return nil, ErrNotYourTurn
		}
	}
	if len(r.Items) >= r.Config.ItemsPerGame {
		return nil, ErrItemLimit
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyItemText
	}
	if runes := []rune(text); len(runes) > MaxItemTextLength {
		text = string(runes[:MaxItemTextLength])
	}
	for _, existing := range r.Items {
		if strings.EqualFold(existing.Text, text) {
			return nil, ErrDuplicateItem
		}
	}

	item := &Item{
		Id:                  uuid.NewString(),
		Text:                text,
		Emoji:               emoji,
		SubmittedByPlayerId: playerId,
		SubmittedAt:         now,
		RoomId:              r.Id,
	}
	r.Items = append(r.Items, item)
	r.StartRankingTimer(now)
	r.touch(now)
	return item, nil
}

func (r *Room) Item(itemId string) *Item {
	for _, item := range r.Items {
		if item.Id == itemId {
			return item
		}
	}
	return nil
}

// RankItem writes rankings[itemId] = slot for the player. A slot
// already occupied by a different item is rejected with ErrSlotTaken;
// moving an item the player already ranked onto a free slot is fine.
// Only an in-progress board accepts writes: after the game ends the
// rankings must stay what the archived standings were computed from.
func (r *Room) RankItem(playerId, itemId string, slot int, now time.Time) error {
	if r.Status != StatusInProgress {
		return ErrWrongStatus
	}
	player := r.Player(playerId)
	if player == nil {
		return ErrPlayerNotFound
	}
	if r.Item(itemId) == nil {
		return ErrItemNotFound
	}
	if slot < 1 || slot > r.Config.ItemsPerGame {
		return ErrSlotOutOfRange
	}
	for otherId, taken := range player.Rankings {
		if taken == slot && otherId != itemId {
			return ErrSlotTaken
		}
	}
	player.Rankings[itemId] = slot
	r.touch(now)
	return nil
}

// AutoAssignRandomRank picks a uniformly random free slot for an item
// the player has not yet ranked. Returns false when the item is already
// ranked or no free slot remains.
func (r *Room) AutoAssignRandomRank(playerId, itemId string) (int, bool) {
	player := r.Player(playerId)
	if player == nil || r.Item(itemId) == nil {
		return 0, false
	}
	if _, ranked := player.Rankings[itemId]; ranked {
		return 0, false
	}
	used := make(map[int]bool, len(player.Rankings))
	for _, slot := range player.Rankings {
		used[slot] = true
	}
	free := make([]int, 0, r.Config.ItemsPerGame)
	for slot := 1; slot <= r.Config.ItemsPerGame; slot++ {
		if !used[slot] {
			free = append(free, slot)
		}
	}
	if len(free) == 0 {
		return 0, false
	}
	slot := free[rand.Intn(len(free))]
	player.Rankings[itemId] = slot
	return slot, true
}

// StartRankingTimer arms the ranking deadline for the most recently
// submitted item. There is no per-item timer: a burst of submissions
// keeps pushing the single deadline forward and only the latest item's
// deadline is tracked.
func (r *Room) StartRankingTimer(now time.Time) {
	if r.Config.RankingTimeout <= 0 {
		r.RankingTimerEndAt = time.Time{}
		return
	}
	r.RankingTimerEndAt = now.Add(time.Duration(r.Config.RankingTimeout) * time.Second)
}

func (r *Room) ClearRankingTimer() {
	r.RankingTimerEndAt = time.Time{}
}

// CheckRankingTimeout auto-ranks the latest item for every player still
// missing it once the deadline passes, then disarms the timer. Reports
// whether any slot was assigned.
func (r *Room) CheckRankingTimeout(now time.Time) bool {
	if r.RankingTimerEndAt.IsZero() || now.Before(r.RankingTimerEndAt) {
		return false
	}
	r.ClearRankingTimer()
	if len(r.Items) == 0 {
		return false
	}
	latest := r.Items[len(r.Items)-1]
	assigned := false
	for _, p := range r.Players {
		if _, ok := r.AutoAssignRandomRank(p.Id, latest.Id); ok {
			assigned = true
		}
	}
	if assigned {
		r.touch(now)
	}
	return assigned
}

// MissedItems lists the items the player has not ranked yet, in
// submission order.
func (r *Room) MissedItems(playerId string) []*Item {
	player := r.Player(playerId)
	if player == nil {
		return nil
	}
	missed := make([]*Item, 0)
	for _, item := range r.Items {
		if _, ranked := player.Rankings[item.Id]; !ranked {
			missed = append(missed, item)
		}
	}
	return missed
}

// CheckCaughtUp flips the catch-up flag off once a late joiner has
// ranked everything, re-admitting them to rotation and completion
// counting. True is returned exactly once per catch-up cycle.
func (r *Room) CheckCaughtUp(playerId string) bool {
	player := r.Player(playerId)
	if player == nil || !player.IsCatchingUp {
		return false
	}
	if len(r.MissedItems(playerId)) > 0 {
		return false
	}
	player.IsCatchingUp = false
	return true
}

// Standing is one row of the final result board.
type Standing struct {
	ItemId     string `json:"itemId"`
	Text       string `json:"text"`
	Emoji      string `json:"emoji"`
	TotalScore int    `json:"totalScore"`
}

// Standings aggregates everyone's slots per item, lower totals first.
// Ties keep submission order (stable sort over the append-only Items).
func (r *Room) Standings() []Standing {
	standings := make([]Standing, 0, len(r.Items))
	for _, item := range r.Items {
		total := 0
		for _, p := range r.Players {
			total += p.Rankings[item.Id]
		}
		standings = append(standings, Standing{
			ItemId:     item.Id,
			Text:       item.Text,
			Emoji:      item.Emoji,
			TotalScore: total,
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].TotalScore < standings[j].TotalScore
	})
	return standings
}
