package rabbit

import (
	"reflect"
	"testing"

	"github.com/snowfight-game/core/internal/bitio"
)

func TestServerMessageRoundTrip(t *testing.T) {
	cases := []ServerMessage{
		{Body: Event{Time: 42, Kind: GameOver{Won: true}}},
		{Body: Event{Time: 7, Kind: Snapshot{Entities: []Entity{
			{ID: 1, Kind: Dead{}},
			{ID: 2, Kind: Object{Position: Point{1, 2, 3}, Kind: 1, Breakable: true, Durability: 0.5, Health: 10, MaxHealth: 10}},
			{ID: 3, Kind: Player{Position: Point{0, 0, 0}, Facing: DirN | DirE, IsHolding: true, Holding: 9, IsBreaking: false, Owner: 3, Health: 100, MaxHealth: 100}},
		}}}},
		{Body: Response{Channel: 7, Kind: Pong{}}},
		{Body: Response{Channel: 1, Kind: ErrorResponse{Text: "bad request"}}},
		{Body: Response{Channel: 0, Kind: Connect{Player: 42, Snapshot: Snapshot{}}}},
	}

	for i, msg := range cases {
		w := bitio.NewWriter(0)
		msg.WriteTo(w)

		r := bitio.NewReader(w.Bytes())
		got, err := ReadServerMessage(r)
		if err != nil {
			t.Fatalf("case %d: ReadServerMessage returned error: %v", i, err)
		}
		if !reflect.DeepEqual(got, msg) {
			t.Fatalf("case %d: round trip mismatch:\n got  %#v\n want %#v", i, got, msg)
		}
	}
}

func TestClientMessageRoundTrip(t *testing.T) {
	cases := []ClientMessage{
		{Body: Request{Channel: 7, Kind: Ping{}}},
		{Body: Request{Channel: 1, Kind: Init{}}},
		{Body: Break{IsBreaking: true, Entity: 5}},
		{Body: Break{IsBreaking: false}},
		{Body: Throw{Target: Point{1, -2, 3.5}}},
		{Body: Move{Facing: DirS | DirW}},
	}

	for i, msg := range cases {
		w := bitio.NewWriter(0)
		msg.WriteTo(w)

		r := bitio.NewReader(w.Bytes())
		got, err := ReadClientMessage(r)
		if err != nil {
			t.Fatalf("case %d: ReadClientMessage returned error: %v", i, err)
		}
		if !reflect.DeepEqual(got, msg) {
			t.Fatalf("case %d: round trip mismatch:\n got  %#v\n want %#v", i, got, msg)
		}
	}
}

func TestDecodeUnknownVariant(t *testing.T) {
	w := bitio.NewWriter(0)
	WriteVariant(w, 3, 2) // EntityKind only has tags 0..2
	r := bitio.NewReader(w.Bytes())
	if _, err := ReadEntityKind(r); err != ErrBadVariant {
		t.Fatalf("ReadEntityKind() error = %v, want ErrBadVariant", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	w := bitio.NewWriter(0)
	ServerMessage{Body: Response{Channel: 1, Kind: Pong{}}}.WriteTo(w)
	full := w.Bytes()

	r := bitio.NewReader(full[:len(full)-1])
	if _, err := ReadServerMessage(r); err == nil {
		t.Fatalf("ReadServerMessage on truncated input returned nil error")
	}
}
