package game

import (
	"math/rand"
	"strings"
	"sync"
)

// Room codes skip vowels and lookalike characters so they survive being
// read out loud at a party.
const roomCodeAlphabet = "BCDFGHJKMNPQRSTVWXYZ23456789"
const roomCodeLength = 6

type idgen struct {
	taken  map[string]struct{}
	locker sync.Mutex
}

func NewIdGen() idgen {
	return idgen{taken: make(map[string]struct{})}
}

func (g *idgen) Generate() string {
	g.locker.Lock()
	defer g.locker.Unlock()

	for {
		var b strings.Builder
		for i := 0; i < roomCodeLength; i++ {
			b.WriteByte(roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))])
		}
		id := b.String()
		if _, exists := g.taken[id]; !exists {
			g.taken[id] = struct{}{}
			return id
		}
	}
}

func (g *idgen) Dispose(id string) {
	g.locker.Lock()
	defer g.locker.Unlock()
	delete(g.taken, id)
}
