package card

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// Shuffler permutes decks with a ChaCha20 keystream. A zero seed draws the
// key from crypto/rand; a non-zero seed yields a reproducible sequence.
type Shuffler struct {
	stream *chacha20.Cipher
	buf    [8]byte
}

func NewShuffler(seed int64) (*Shuffler, error) {
	key := make([]byte, chacha20.KeySize)
	if seed == 0 {
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("read shuffle key: %w", err)
		}
	} else {
		binary.LittleEndian.PutUint64(key, uint64(seed))
	}
	nonce := make([]byte, chacha20.NonceSize)
	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	return &Shuffler{stream: stream}, nil
}

func (s *Shuffler) uint64() uint64 {
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.stream.XORKeyStream(s.buf[:], s.buf[:])
	return binary.LittleEndian.Uint64(s.buf[:])
}

// Intn returns a uniform value in [0, n) using rejection sampling.
func (s *Shuffler) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	bound := uint64(n)
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		v := s.uint64()
		if v < limit {
			return int(v % bound)
		}
	}
}

// Shuffle is an in-place Fisher-Yates permutation.
func (s *Shuffler) Shuffle(cards CardList) {
	for i := len(cards) - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// ShuffledDeck returns a fresh permutation of the 52 cards.
func (s *Shuffler) ShuffledDeck() CardList {
	deck := NewDeck()
	s.Shuffle(deck)
	return deck
}
