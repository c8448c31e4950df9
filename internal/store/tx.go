package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ravigummadi/smallbets.live/internal/game"
)

const (
	roomKey            = "room"
	participantsIndex  = "participants"
	betsIndex          = "bets"
	participantKeyPref = "participant/"
	betKeyPref         = "bet/"
	wagerKeyPref       = "wager/"
)

func participantKey(userID string) string { return participantKeyPref + userID }
func betKey(betID string) string          { return betKeyPref + betID }
func wagerKey(betID, userID string) string {
	return wagerKeyPref + betID + "/" + userID
}
func wagersIndex(betID string) string { return "wagers/" + betID }

// kv is the backend half of a transaction: raw documents and membership
// indexes. get returns nil, nil for a missing key.
type kv interface {
	get(key string) ([]byte, error)
	members(index string) ([]string, error)
	put(key string, data []byte, indexes ...string)
}

// docTx maps typed documents onto a kv transaction.
type docTx struct {
	kv kv
}

var _ Tx = (*docTx)(nil)

func (t *docTx) load(key string, v any) (bool, error) {
	b, err := t.kv.get(key)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", game.ErrUnavailable, key, err)
	}
	return true, nil
}

func (t *docTx) save(key string, v any, indexes ...string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	t.kv.put(key, b, indexes...)
	return nil
}

func loadAll[T any](t *docTx, index string) ([]*T, error) {
	keys, err := t.kv.members(index)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		v := new(T)
		ok, err := t.load(k, v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (t *docTx) Room() (*game.Room, error) {
	var r game.Room
	ok, err := t.load(roomKey, &r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return &r, nil
}

func (t *docTx) Participant(userID string) (*game.Participant, error) {
	var p game.Participant
	ok, err := t.load(participantKey(userID), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrParticipantNotFound
	}
	return &p, nil
}

func (t *docTx) Participants() ([]*game.Participant, error) {
	ps, err := loadAll[game.Participant](t, participantsIndex)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].JoinedAt.Before(ps[j].JoinedAt) })
	return ps, nil
}

func (t *docTx) Bet(betID string) (*game.Bet, error) {
	var b game.Bet
	ok, err := t.load(betKey(betID), &b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrBetNotFound
	}
	return &b, nil
}

// Bets returns the room's bets in creation order.
func (t *docTx) Bets() ([]*game.Bet, error) {
	bs, err := loadAll[game.Bet](t, betsIndex)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].CreatedAt.Before(bs[j].CreatedAt)
		}
		return bs[i].ID < bs[j].ID
	})
	return bs, nil
}

func (t *docTx) Wager(betID, userID string) (*game.Wager, error) {
	var w game.Wager
	ok, err := t.load(wagerKey(betID, userID), &w)
	if err != nil || !ok {
		return nil, err
	}
	return &w, nil
}

func (t *docTx) Wagers(betID string) ([]*game.Wager, error) {
	ws, err := loadAll[game.Wager](t, wagersIndex(betID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].PlacedAt.Before(ws[j].PlacedAt) })
	return ws, nil
}

// Each Put bumps the document version; the caller passes the document as
// it was read (or a fresh one with version 0).

func (t *docTx) PutRoom(r *game.Room) error {
	r.Version++
	return t.save(roomKey, r)
}

func (t *docTx) PutParticipant(p *game.Participant) error {
	p.Version++
	return t.save(participantKey(p.UserID), p, participantsIndex)
}

func (t *docTx) PutBet(b *game.Bet) error {
	b.Version++
	return t.save(betKey(b.ID), b, betsIndex)
}

func (t *docTx) PutWager(w *game.Wager) error {
	w.Version++
	return t.save(wagerKey(w.BetID, w.UserID), w, wagersIndex(w.BetID))
}
