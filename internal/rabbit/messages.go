package rabbit

import (
	"github.com/snowfight-game/core/internal/bitio"
)

// This file implements the §6 application message schema by hand: each
// type carries its own WriteTo and a package-level Read<Type> function, per
// §9's "neutral re-architecture" (code generation is optional at this
// size). Closed sums (EntityKind, EventKind, ResponseKind, RequestKind,
// Action) are modeled as an unexported-method interface implemented by
// each variant's concrete struct, with the discriminator written/read by a
// package-level WriteX/ReadX pair that switches on the concrete type.

// Direction is a 4-direction bitfield occupying a full byte on the wire;
// the upper 4 bits are reserved and always zero (§9 open question,
// reproduced verbatim).
type Direction uint8

const (
	DirNone Direction = 0
	DirN    Direction = 1 << 0
	DirW    Direction = 1 << 1
	DirS    Direction = 1 << 2
	DirE    Direction = 1 << 3
)

func (d Direction) WriteTo(w *bitio.Writer) { WriteU8(w, uint8(d)) }

func ReadDirection(r *bitio.Reader) (Direction, error) {
	v, err := ReadU8(r)
	return Direction(v), err
}

// Point is a 3-component float32 position.
type Point struct {
	X, Y, Z float32
}

func (p Point) WriteTo(w *bitio.Writer) {
	WriteFloat32(w, p.X)
	WriteFloat32(w, p.Y)
	WriteFloat32(w, p.Z)
}

func ReadPoint(r *bitio.Reader) (Point, error) {
	x, err := ReadFloat32(r)
	if err != nil {
		return Point{}, err
	}
	y, err := ReadFloat32(r)
	if err != nil {
		return Point{}, err
	}
	z, err := ReadFloat32(r)
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y, Z: z}, nil
}

// ---- EntityKind: Object | Player | Dead (u2 tag) ----

type EntityKind interface{ isEntityKind() }

type Object struct {
	Position   Point
	Kind       uint8 // u1: distinguishes the object's visual/material kind
	Breakable  bool
	Durability float32 // present only if Breakable
	Health     uint32
	MaxHealth  uint32
}

func (Object) isEntityKind() {}

func (o Object) WriteTo(w *bitio.Writer) {
	o.Position.WriteTo(w)
	WriteVariant(w, uint64(o.Kind), 1)
	WriteBool(w, o.Breakable)
	if o.Breakable {
		WriteFloat32(w, o.Durability)
	}
	WriteU32(w, o.Health)
	WriteU32(w, o.MaxHealth)
}

func ReadObject(r *bitio.Reader) (Object, error) {
	var o Object
	pos, err := ReadPoint(r)
	if err != nil {
		return Object{}, err
	}
	o.Position = pos

	kind, err := ReadVariant(r, 1)
	if err != nil {
		return Object{}, err
	}
	o.Kind = uint8(kind)

	o.Breakable, err = ReadBool(r)
	if err != nil {
		return Object{}, err
	}
	if o.Breakable {
		o.Durability, err = ReadFloat32(r)
		if err != nil {
			return Object{}, err
		}
	}

	o.Health, err = ReadU32(r)
	if err != nil {
		return Object{}, err
	}
	o.MaxHealth, err = ReadU32(r)
	if err != nil {
		return Object{}, err
	}
	return o, nil
}

type Player struct {
	Position    Point
	Facing      Direction
	IsHolding   bool
	Holding     uint32 // present only if IsHolding
	IsBreaking  bool
	Breaking    uint32 // present only if IsBreaking
	Owner       uint32
	Health      uint32
	MaxHealth   uint32
}

func (Player) isEntityKind() {}

func (p Player) WriteTo(w *bitio.Writer) {
	p.Position.WriteTo(w)
	p.Facing.WriteTo(w)
	WriteBool(w, p.IsHolding)
	if p.IsHolding {
		WriteU32(w, p.Holding)
	}
	WriteBool(w, p.IsBreaking)
	if p.IsBreaking {
		WriteU32(w, p.Breaking)
	}
	WriteU32(w, p.Owner)
	WriteU32(w, p.Health)
	WriteU32(w, p.MaxHealth)
}

func ReadPlayer(r *bitio.Reader) (Player, error) {
	var p Player
	pos, err := ReadPoint(r)
	if err != nil {
		return Player{}, err
	}
	p.Position = pos

	p.Facing, err = ReadDirection(r)
	if err != nil {
		return Player{}, err
	}

	p.IsHolding, err = ReadBool(r)
	if err != nil {
		return Player{}, err
	}
	if p.IsHolding {
		p.Holding, err = ReadU32(r)
		if err != nil {
			return Player{}, err
		}
	}

	p.IsBreaking, err = ReadBool(r)
	if err != nil {
		return Player{}, err
	}
	if p.IsBreaking {
		p.Breaking, err = ReadU32(r)
		if err != nil {
			return Player{}, err
		}
	}

	p.Owner, err = ReadU32(r)
	if err != nil {
		return Player{}, err
	}
	p.Health, err = ReadU32(r)
	if err != nil {
		return Player{}, err
	}
	p.MaxHealth, err = ReadU32(r)
	if err != nil {
		return Player{}, err
	}
	return p, nil
}

type Dead struct{}

func (Dead) isEntityKind() {}

func (Dead) WriteTo(*bitio.Writer) {}

func ReadDead(*bitio.Reader) (Dead, error) { return Dead{}, nil }

func WriteEntityKind(w *bitio.Writer, k EntityKind) {
	switch v := k.(type) {
	case Object:
		WriteVariant(w, 0, 2)
		v.WriteTo(w)
	case Player:
		WriteVariant(w, 1, 2)
		v.WriteTo(w)
	case Dead:
		WriteVariant(w, 2, 2)
		v.WriteTo(w)
	}
}

func ReadEntityKind(r *bitio.Reader) (EntityKind, error) {
	tag, err := ReadVariant(r, 2)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return ReadObject(r)
	case 1:
		return ReadPlayer(r)
	case 2:
		return ReadDead(r)
	default:
		return nil, ErrBadVariant
	}
}

// Entity pairs a stable id with its kind-specific state.
type Entity struct {
	ID   uint32
	Kind EntityKind
}

func (e Entity) WriteTo(w *bitio.Writer) {
	WriteU32(w, e.ID)
	WriteEntityKind(w, e.Kind)
}

func ReadEntity(r *bitio.Reader) (Entity, error) {
	id, err := ReadU32(r)
	if err != nil {
		return Entity{}, err
	}
	kind, err := ReadEntityKind(r)
	if err != nil {
		return Entity{}, err
	}
	return Entity{ID: id, Kind: kind}, nil
}

// Snapshot is a length-prefixed sequence of entities (§4.2 "Length-prefixed
// sequences").
type Snapshot struct {
	Entities []Entity
}

func (s Snapshot) isEventKind() {}

func (s Snapshot) WriteTo(w *bitio.Writer) {
	WriteU32(w, uint32(len(s.Entities)))
	for _, e := range s.Entities {
		e.WriteTo(w)
	}
}

func ReadSnapshot(r *bitio.Reader) (Snapshot, error) {
	count, err := ReadU32(r)
	if err != nil {
		return Snapshot{}, err
	}
	var entities []Entity
	if count > 0 {
		entities = make([]Entity, 0, preallocLen(uint64(count)))
	}
	for i := uint32(0); i < count; i++ {
		e, err := ReadEntity(r)
		if err != nil {
			return Snapshot{}, err
		}
		entities = append(entities, e)
	}
	return Snapshot{Entities: entities}, nil
}

// ---- EventKind: Snapshot | GameOver (u1 tag) ----

type EventKind interface{ isEventKind() }

type GameOver struct {
	Won bool
}

func (GameOver) isEventKind() {}

func (g GameOver) WriteTo(w *bitio.Writer) { WriteBool(w, g.Won) }

func ReadGameOver(r *bitio.Reader) (GameOver, error) {
	won, err := ReadBool(r)
	return GameOver{Won: won}, err
}

func WriteEventKind(w *bitio.Writer, k EventKind) {
	switch v := k.(type) {
	case Snapshot:
		WriteVariant(w, 0, 1)
		v.WriteTo(w)
	case GameOver:
		WriteVariant(w, 1, 1)
		v.WriteTo(w)
	}
}

func ReadEventKind(r *bitio.Reader) (EventKind, error) {
	tag, err := ReadVariant(r, 1)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return ReadSnapshot(r)
	case 1:
		return ReadGameOver(r)
	default:
		return nil, ErrBadVariant
	}
}

// Event is a server-clock-timestamped occurrence.
type Event struct {
	Time uint32
	Kind EventKind
}

func (e Event) isServerMessageBody() {}

func (e Event) WriteTo(w *bitio.Writer) {
	WriteU32(w, e.Time)
	WriteEventKind(w, e.Kind)
}

func ReadEvent(r *bitio.Reader) (Event, error) {
	t, err := ReadU32(r)
	if err != nil {
		return Event{}, err
	}
	kind, err := ReadEventKind(r)
	if err != nil {
		return Event{}, err
	}
	return Event{Time: t, Kind: kind}, nil
}

// ---- ResponseKind: ErrorResponse | Pong | Connect (u2 tag) ----

type ResponseKind interface{ isResponseKind() }

// ErrorResponse carries a UTF-8 diagnostic string (§4.2 length-prefixed
// byte sequence). Named ErrorResponse, not Error, so it doesn't collide
// with Go's built-in error interface.
type ErrorResponse struct {
	Text string
}

func (ErrorResponse) isResponseKind() {}

func (e ErrorResponse) WriteTo(w *bitio.Writer) {
	b := []byte(e.Text)
	WriteU32(w, uint32(len(b)))
	for _, c := range b {
		WriteU8(w, c)
	}
}

func ReadErrorResponse(r *bitio.Reader) (ErrorResponse, error) {
	n, err := ReadU32(r)
	if err != nil {
		return ErrorResponse{}, err
	}
	buf := make([]byte, 0, preallocLen(uint64(n)))
	for i := uint32(0); i < n; i++ {
		c, err := ReadU8(r)
		if err != nil {
			return ErrorResponse{}, err
		}
		buf = append(buf, c)
	}
	return ErrorResponse{Text: string(buf)}, nil
}

type Pong struct{}

func (Pong) isResponseKind() {}

func (Pong) WriteTo(*bitio.Writer) {}

func ReadPong(*bitio.Reader) (Pong, error) { return Pong{}, nil }

// Connect answers a verified ChallengeResponse with the caller's player id
// and the current world snapshot.
type Connect struct {
	Player   uint32
	Snapshot Snapshot
}

func (Connect) isResponseKind() {}

func (c Connect) WriteTo(w *bitio.Writer) {
	WriteU32(w, c.Player)
	c.Snapshot.WriteTo(w)
}

func ReadConnect(r *bitio.Reader) (Connect, error) {
	player, err := ReadU32(r)
	if err != nil {
		return Connect{}, err
	}
	snap, err := ReadSnapshot(r)
	if err != nil {
		return Connect{}, err
	}
	return Connect{Player: player, Snapshot: snap}, nil
}

func WriteResponseKind(w *bitio.Writer, k ResponseKind) {
	switch v := k.(type) {
	case ErrorResponse:
		WriteVariant(w, 0, 2)
		v.WriteTo(w)
	case Pong:
		WriteVariant(w, 1, 2)
		v.WriteTo(w)
	case Connect:
		WriteVariant(w, 2, 2)
		v.WriteTo(w)
	}
}

func ReadResponseKind(r *bitio.Reader) (ResponseKind, error) {
	tag, err := ReadVariant(r, 2)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return ReadErrorResponse(r)
	case 1:
		return ReadPong(r)
	case 2:
		return ReadConnect(r)
	default:
		return nil, ErrBadVariant
	}
}

// Response answers a Request on the same channel id the caller chose.
type Response struct {
	Channel uint32
	Kind    ResponseKind
}

func (r Response) isServerMessageBody() {}

func (resp Response) WriteTo(w *bitio.Writer) {
	WriteU32(w, resp.Channel)
	WriteResponseKind(w, resp.Kind)
}

func ReadResponse(r *bitio.Reader) (Response, error) {
	channel, err := ReadU32(r)
	if err != nil {
		return Response{}, err
	}
	kind, err := ReadResponseKind(r)
	if err != nil {
		return Response{}, err
	}
	return Response{Channel: channel, Kind: kind}, nil
}

// ---- ServerMessage: Event | Response (u1 tag) ----

type ServerMessageBody interface{ isServerMessageBody() }

type ServerMessage struct {
	Body ServerMessageBody
}

func (m ServerMessage) WriteTo(w *bitio.Writer) {
	switch body := m.Body.(type) {
	case Event:
		WriteVariant(w, 0, 1)
		body.WriteTo(w)
	case Response:
		WriteVariant(w, 1, 1)
		body.WriteTo(w)
	}
}

func ReadServerMessage(r *bitio.Reader) (ServerMessage, error) {
	tag, err := ReadVariant(r, 1)
	if err != nil {
		return ServerMessage{}, err
	}
	switch tag {
	case 0:
		e, err := ReadEvent(r)
		return ServerMessage{Body: e}, err
	case 1:
		resp, err := ReadResponse(r)
		return ServerMessage{Body: resp}, err
	default:
		return ServerMessage{}, ErrBadVariant
	}
}

// ---- RequestKind: Ping | Init (u1 tag) ----

type RequestKind interface{ isRequestKind() }

type Ping struct{}

func (Ping) isRequestKind() {}

func (Ping) WriteTo(*bitio.Writer) {}

func ReadPing(*bitio.Reader) (Ping, error) { return Ping{}, nil }

type Init struct{}

func (Init) isRequestKind() {}

func (Init) WriteTo(*bitio.Writer) {}

func ReadInit(*bitio.Reader) (Init, error) { return Init{}, nil }

func WriteRequestKind(w *bitio.Writer, k RequestKind) {
	switch v := k.(type) {
	case Ping:
		WriteVariant(w, 0, 1)
		v.WriteTo(w)
	case Init:
		WriteVariant(w, 1, 1)
		v.WriteTo(w)
	}
}

func ReadRequestKind(r *bitio.Reader) (RequestKind, error) {
	tag, err := ReadVariant(r, 1)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return ReadPing(r)
	case 1:
		return ReadInit(r)
	default:
		return nil, ErrBadVariant
	}
}

// Request is a client-chosen-channel query; the server's eventual Response
// echoes the same channel id so the caller can correlate the two.
type Request struct {
	Channel uint32
	Kind    RequestKind
}

func (Request) isClientMessageBody() {}

func (req Request) WriteTo(w *bitio.Writer) {
	WriteU32(w, req.Channel)
	WriteRequestKind(w, req.Kind)
}

func ReadRequest(r *bitio.Reader) (Request, error) {
	channel, err := ReadU32(r)
	if err != nil {
		return Request{}, err
	}
	kind, err := ReadRequestKind(r)
	if err != nil {
		return Request{}, err
	}
	return Request{Channel: channel, Kind: kind}, nil
}

// ---- Action: Break | Throw | Move (u2 tag) ----

type Action interface{ isAction() }

type Break struct {
	IsBreaking bool
	Entity     uint32 // present only if IsBreaking
}

func (Break) isAction()              {}
func (Break) isClientMessageBody()   {}

func (b Break) WriteTo(w *bitio.Writer) {
	WriteBool(w, b.IsBreaking)
	if b.IsBreaking {
		WriteU32(w, b.Entity)
	}
}

func ReadBreak(r *bitio.Reader) (Break, error) {
	var b Break
	isBreaking, err := ReadBool(r)
	if err != nil {
		return Break{}, err
	}
	b.IsBreaking = isBreaking
	if isBreaking {
		b.Entity, err = ReadU32(r)
		if err != nil {
			return Break{}, err
		}
	}
	return b, nil
}

type Throw struct {
	Target Point
}

func (Throw) isAction()            {}
func (Throw) isClientMessageBody() {}

func (t Throw) WriteTo(w *bitio.Writer) { t.Target.WriteTo(w) }

func ReadThrow(r *bitio.Reader) (Throw, error) {
	p, err := ReadPoint(r)
	return Throw{Target: p}, err
}

type Move struct {
	Facing Direction
}

func (Move) isAction()            {}
func (Move) isClientMessageBody() {}

func (m Move) WriteTo(w *bitio.Writer) { m.Facing.WriteTo(w) }

func ReadMove(r *bitio.Reader) (Move, error) {
	d, err := ReadDirection(r)
	return Move{Facing: d}, err
}

func WriteAction(w *bitio.Writer, a Action) {
	switch v := a.(type) {
	case Break:
		WriteVariant(w, 0, 2)
		v.WriteTo(w)
	case Throw:
		WriteVariant(w, 1, 2)
		v.WriteTo(w)
	case Move:
		WriteVariant(w, 2, 2)
		v.WriteTo(w)
	}
}

func ReadAction(r *bitio.Reader) (Action, error) {
	tag, err := ReadVariant(r, 2)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return ReadBreak(r)
	case 1:
		return ReadThrow(r)
	case 2:
		return ReadMove(r)
	default:
		return nil, ErrBadVariant
	}
}

// ---- ClientMessage: Request | Action (u32 tag — asymmetric with
// ServerMessage's u1 tag; reproduced verbatim per §9) ----

type ClientMessageBody interface{ isClientMessageBody() }

type ClientMessage struct {
	Body ClientMessageBody
}

func (m ClientMessage) WriteTo(w *bitio.Writer) {
	switch body := m.Body.(type) {
	case Request:
		WriteU32(w, 0)
		body.WriteTo(w)
	case Action:
		WriteU32(w, 1)
		WriteAction(w, body)
	}
}

func ReadClientMessage(r *bitio.Reader) (ClientMessage, error) {
	tag, err := ReadU32(r)
	if err != nil {
		return ClientMessage{}, err
	}
	switch tag {
	case 0:
		req, err := ReadRequest(r)
		return ClientMessage{Body: req}, err
	case 1:
		act, err := ReadAction(r)
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Body: act.(ClientMessageBody)}, nil
	default:
		return ClientMessage{}, ErrBadVariant
	}
}
