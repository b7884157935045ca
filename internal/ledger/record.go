package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// HandRecord is the audit trail of one settled hand.
type HandRecord struct {
	HandID  string
	Table   TableID
	HandNo  uint32
	Button  uint32
	Board   []string
	Rake    int64
	Pots    []PotRecord
	Seats   []SeatRecord
	EndedAt time.Time
}

type PotRecord struct {
	Amount  int64
	Winners []string
	Label   string // winning hand, empty without showdown
}

type SeatRecord struct {
	UserID    string
	Chair     uint32
	Committed int64
	Won       int64
	Hole      []string // only for hands shown down
	Hand      string
}

// Wire field numbers.
const (
	recHandID  protowire.Number = 1
	recGuild   protowire.Number = 2
	recChannel protowire.Number = 3
	recHandNo  protowire.Number = 4
	recButton  protowire.Number = 5
	recBoard   protowire.Number = 6
	recRake    protowire.Number = 7
	recPots    protowire.Number = 8
	recSeats   protowire.Number = 9
	recEndedAt protowire.Number = 10

	potAmount  protowire.Number = 1
	potWinners protowire.Number = 2
	potLabel   protowire.Number = 3

	seatUser      protowire.Number = 1
	seatChair     protowire.Number = 2
	seatCommitted protowire.Number = 3
	seatWon       protowire.Number = 4
	seatHole      protowire.Number = 5
	seatHand      protowire.Number = 6
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	return appendVarint(b, num, protowire.EncodeZigZag(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// MarshalHandRecord encodes rec in protobuf wire format.
func MarshalHandRecord(rec *HandRecord) []byte {
	var b []byte
	b = appendString(b, recHandID, rec.HandID)
	b = appendString(b, recGuild, rec.Table.GuildID)
	b = appendString(b, recChannel, rec.Table.ChannelID)
	b = appendVarint(b, recHandNo, uint64(rec.HandNo))
	b = appendVarint(b, recButton, uint64(rec.Button))
	for _, c := range rec.Board {
		b = protowire.AppendTag(b, recBoard, protowire.BytesType)
		b = protowire.AppendString(b, c)
	}
	b = appendInt64(b, recRake, rec.Rake)
	for _, p := range rec.Pots {
		var m []byte
		m = appendInt64(m, potAmount, p.Amount)
		for _, w := range p.Winners {
			m = protowire.AppendTag(m, potWinners, protowire.BytesType)
			m = protowire.AppendString(m, w)
		}
		m = appendString(m, potLabel, p.Label)
		b = appendMessage(b, recPots, m)
	}
	for _, s := range rec.Seats {
		var m []byte
		m = appendString(m, seatUser, s.UserID)
		m = appendVarint(m, seatChair, uint64(s.Chair))
		m = appendInt64(m, seatCommitted, s.Committed)
		m = appendInt64(m, seatWon, s.Won)
		for _, c := range s.Hole {
			m = protowire.AppendTag(m, seatHole, protowire.BytesType)
			m = protowire.AppendString(m, c)
		}
		m = appendString(m, seatHand, s.Hand)
		b = appendMessage(b, recSeats, m)
	}
	if !rec.EndedAt.IsZero() {
		b = appendInt64(b, recEndedAt, rec.EndedAt.UnixMilli())
	}
	return b
}

// walkFields calls fn for every field in b. fn returns the bytes it consumed,
// or -1 to let the field be skipped.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		used, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if used < 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
			if used < 0 {
				return protowire.ParseError(used)
			}
		}
		b = b[used:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return -1, nil
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return -1, nil
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeInt64(typ protowire.Type, b []byte, dst *int64) (int, error) {
	var v uint64
	n, err := consumeVarint(typ, b, &v)
	if err == nil && n > 0 {
		*dst = protowire.DecodeZigZag(v)
	}
	return n, err
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return -1, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

// UnmarshalHandRecord decodes a record written by MarshalHandRecord. Unknown
// fields are skipped.
func UnmarshalHandRecord(b []byte) (*HandRecord, error) {
	rec := &HandRecord{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var u uint64
		switch num {
		case recHandID:
			return consumeString(typ, b, &rec.HandID)
		case recGuild:
			return consumeString(typ, b, &rec.Table.GuildID)
		case recChannel:
			return consumeString(typ, b, &rec.Table.ChannelID)
		case recHandNo:
			n, err := consumeVarint(typ, b, &u)
			rec.HandNo = uint32(u)
			return n, err
		case recButton:
			n, err := consumeVarint(typ, b, &u)
			rec.Button = uint32(u)
			return n, err
		case recBoard:
			var s string
			n, err := consumeString(typ, b, &s)
			if n > 0 {
				rec.Board = append(rec.Board, s)
			}
			return n, err
		case recRake:
			return consumeInt64(typ, b, &rec.Rake)
		case recPots:
			var raw []byte
			n, err := consumeBytes(typ, b, &raw)
			if n <= 0 || err != nil {
				return n, err
			}
			p, err := unmarshalPot(raw)
			if err != nil {
				return 0, err
			}
			rec.Pots = append(rec.Pots, p)
			return n, nil
		case recSeats:
			var raw []byte
			n, err := consumeBytes(typ, b, &raw)
			if n <= 0 || err != nil {
				return n, err
			}
			s, err := unmarshalSeat(raw)
			if err != nil {
				return 0, err
			}
			rec.Seats = append(rec.Seats, s)
			return n, nil
		case recEndedAt:
			var ms int64
			n, err := consumeInt64(typ, b, &ms)
			if n > 0 {
				rec.EndedAt = time.UnixMilli(ms).UTC()
			}
			return n, err
		}
		return -1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode hand record: %w", err)
	}
	return rec, nil
}

func unmarshalPot(b []byte) (PotRecord, error) {
	var p PotRecord
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case potAmount:
			return consumeInt64(typ, b, &p.Amount)
		case potWinners:
			var s string
			n, err := consumeString(typ, b, &s)
			if n > 0 {
				p.Winners = append(p.Winners, s)
			}
			return n, err
		case potLabel:
			return consumeString(typ, b, &p.Label)
		}
		return -1, nil
	})
	return p, err
}

func unmarshalSeat(b []byte) (SeatRecord, error) {
	var s SeatRecord
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var u uint64
		switch num {
		case seatUser:
			return consumeString(typ, b, &s.UserID)
		case seatChair:
			n, err := consumeVarint(typ, b, &u)
			s.Chair = uint32(u)
			return n, err
		case seatCommitted:
			return consumeInt64(typ, b, &s.Committed)
		case seatWon:
			return consumeInt64(typ, b, &s.Won)
		case seatHole:
			var c string
			n, err := consumeString(typ, b, &c)
			if n > 0 {
				s.Hole = append(s.Hole, c)
			}
			return n, err
		case seatHand:
			return consumeString(typ, b, &s.Hand)
		}
		return -1, nil
	})
	return s, err
}

// summaryJSON is the queryable digest stored next to the encoded record.
func summaryJSON(rec *HandRecord) (string, error) {
	winners := make(map[string]int64)
	for _, s := range rec.Seats {
		if s.Won > 0 {
			winners[s.UserID] = s.Won
		}
	}
	raw, err := json.Marshal(map[string]any{
		"hand_no": rec.HandNo,
		"table":   rec.Table.String(),
		"board":   rec.Board,
		"rake":    rec.Rake,
		"winners": winners,
		"seats":   len(rec.Seats),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
